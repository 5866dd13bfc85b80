package live

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
)

const (
	ProcessFramePath = "/session/process_frame"

	frameFilename    = "camera_image.jpg"
	frameContentType = "image/jpeg"
)

type (
	// Request is one outbound exchange with the emotion backend.
	Request struct {
		Path        string
		ContentType string
		Body        []byte
	}

	Response struct {
		Status int
		Body   []byte
	}

	// Transport performs exactly one request per call.
	// A returned error means the exchange itself failed, not that the backend refused it.
	Transport interface {
		Exchange(ctx context.Context, req Request) (Response, error)
	}

	// Coordinator submits preprocessed frames to the emotion backend.
	Coordinator struct {
		transport Transport
	}

	processFrameResponse struct {
		Image    string `json:"image"`
		ImageURL string `json:"image_url"`
	}
)

func NewCoordinator(transport Transport) *Coordinator {
	return &Coordinator{transport: transport}
}

// Submit sends the cycle's frame with its session and subject ids and returns the displayable result.
// There are no retries: the next tick is the retry.
func (co *Coordinator) Submit(ctx context.Context, c *Cycle) (*Artifact, error) {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.SessionID, "session_id"),
		vala.StringNotEmpty(c.SubjectID, "student_id"),
		vala.GreaterThan(len(c.Frame), 0, "frame"),
	).Check(); err != nil {
		return nil, PreconditionError("submit", err)
	}

	body, contentType, err := encodeFrameForm(c)
	if err != nil {
		return nil, EncodingError(err)
	}

	resp, err := co.transport.Exchange(ctx, Request{
		Path:        ProcessFramePath,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		return nil, NetworkError(err)
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, BackendError(resp.Status, errors.New(snippet(resp.Body)))
	}

	var payload processFrameResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, MalformedResponse(errors.Wrap(err, "decoding response"))
	}
	img := payload.Image
	if img == "" {
		img = payload.ImageURL
	}
	if img == "" {
		return nil, MalformedResponse(errors.New("response has no image"))
	}
	art, err := decodeArtifact(img)
	if err != nil {
		return nil, MalformedResponse(err)
	}
	return art, nil
}

func encodeFrameForm(c *Cycle) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("session_id", c.SessionID); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("student_id", c.SubjectID); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+frameFilename+`"`)
	h.Set("Content-Type", frameContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(c.Frame); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// decodeArtifact accepts a data URI, an http(s) URL or bare base64.
func decodeArtifact(img string) (*Artifact, error) {
	img = strings.TrimSpace(img)
	switch {
	case strings.HasPrefix(img, "http://"), strings.HasPrefix(img, "https://"):
		return &Artifact{URL: img}, nil

	case strings.HasPrefix(img, "data:"):
		comma := strings.IndexByte(img, ',')
		if comma < 0 {
			return nil, errors.New("invalid data URI")
		}
		meta := img[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, errors.New("data URI is not base64 encoded")
		}
		data, err := base64.StdEncoding.DecodeString(img[comma+1:])
		if err != nil {
			return nil, errors.Wrap(err, "decoding data URI")
		}
		contentType := strings.TrimSuffix(meta, ";base64")
		if contentType == "" {
			contentType = frameContentType
		}
		return &Artifact{ContentType: contentType, Data: data}, nil
	}

	data, err := base64.StdEncoding.DecodeString(img)
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return &Artifact{ContentType: frameContentType, Data: data}, nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max] + "..."
	}
	if s == "" {
		s = "empty response"
	}
	return s
}
