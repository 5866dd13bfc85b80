package live

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_Submit(t *testing.T) {
	netErr := errors.New("connection refused")
	tests := []struct {
		name     string
		cycle    Cycle
		resp     Response
		err      error
		wantKind Kind
		want     *Artifact
	}{
		{
			name:     "missing session",
			cycle:    Cycle{SubjectID: "a1", Frame: []byte("f")},
			wantKind: KindPrecondition,
		},
		{
			name:     "missing subject",
			cycle:    Cycle{SessionID: "s", Frame: []byte("f")},
			wantKind: KindPrecondition,
		},
		{
			name:     "empty frame",
			cycle:    Cycle{SessionID: "s", SubjectID: "a1"},
			wantKind: KindPrecondition,
		},
		{
			name:     "transport failure",
			cycle:    Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")},
			err:      netErr,
			wantKind: KindNetwork,
		},
		{
			name:     "non success status",
			cycle:    Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")},
			resp:     Response{Status: 500, Body: []byte(`{"error": "model crashed"}`)},
			wantKind: KindBackend,
		},
		{
			name:     "not json",
			cycle:    Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")},
			resp:     Response{Status: 200, Body: []byte(`<html>`)},
			wantKind: KindMalformed,
		},
		{
			name:     "missing image field",
			cycle:    Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")},
			resp:     Response{Status: 200, Body: []byte(`{"emotion": "happy"}`)},
			wantKind: KindMalformed,
		},
		{
			name:     "bad base64",
			cycle:    Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")},
			resp:     Response{Status: 200, Body: []byte(`{"image": "%%%"}`)},
			wantKind: KindMalformed,
		},
		{
			name:  "data uri",
			cycle: Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")},
			resp:  Response{Status: 200, Body: []byte(`{"image": "data:image/png;base64,aGVsbG8="}`)},
			want:  &Artifact{ContentType: "image/png", Data: []byte("hello")},
		},
		{
			name:  "bare base64",
			cycle: Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")},
			resp:  Response{Status: 201, Body: []byte(`{"image": "aGVsbG8="}`)},
			want:  &Artifact{ContentType: "image/jpeg", Data: []byte("hello")},
		},
		{
			name:  "image url",
			cycle: Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")},
			resp:  Response{Status: 200, Body: []byte(`{"image_url": "https://cdn.test/out.jpg"}`)},
			want:  &Artifact{URL: "https://cdn.test/out.jpg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newGatedTransport(false)
			tr.resp, tr.err = tt.resp, tt.err
			art, err := NewCoordinator(tr).Submit(context.Background(), &tt.cycle)

			if tt.wantKind != KindUnknown {
				require.Error(t, err)
				if got := KindOf(err); got != tt.wantKind {
					t.Errorf("KindOf() = %v, want %v (%v)", got, tt.wantKind, err)
				}
				if tt.wantKind == KindPrecondition {
					calls, _ := tr.stats()
					assert.Zero(t, calls, "no request on precondition failure")
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, art)
			calls, _ := tr.stats()
			assert.Equal(t, 1, calls)
		})
	}
}

func TestCoordinator_BackendStatus(t *testing.T) {
	tr := newGatedTransport(false)
	tr.resp = Response{Status: 503}
	_, err := NewCoordinator(tr).Submit(context.Background(), &Cycle{SessionID: "s", SubjectID: "a1", Frame: []byte("f")})

	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, KindBackend, lerr.Kind)
	assert.Equal(t, 503, lerr.Status)
}

func TestCoordinator_MultipartBody(t *testing.T) {
	tr := newGatedTransport(false)
	c := &Cycle{SessionID: "sess-7", SubjectID: "a1", Frame: []byte("\xff\xd8jpeg")}
	_, err := NewCoordinator(tr).Submit(context.Background(), c)
	require.NoError(t, err)

	req := tr.lastReq
	assert.Equal(t, ProcessFramePath, req.Path)
	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	form, err := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-7"}, form.Value["session_id"])
	assert.Equal(t, []string{"a1"}, form.Value["student_id"])
	require.Len(t, form.File["image"], 1)

	fh := form.File["image"][0]
	assert.Equal(t, "camera_image.jpg", fh.Filename)
	assert.Equal(t, "image/jpeg", fh.Header.Get("Content-Type"))
	f, err := fh.Open()
	require.NoError(t, err)
	defer f.Close()
	data, err := ioutil.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, c.Frame, data)
}
