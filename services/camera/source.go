package camera

import (
	"bytes"
	"context"
	"io/ioutil"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
)

var (
	// errors
	ErrNoCamera   = errors.New("no camera command available")
	ErrEmptyFrame = errors.New("camera returned an empty frame")
	ErrNoImages   = errors.New("no images in directory")

	// DefaultCommands are tried in order when no capture command is configured.
	DefaultCommands = []Command{
		{Name: "rpicam-jpeg", Args: []string{"--timeout", "1", "--nopreview", "--output", "-"}},
		{Name: "libcamera-jpeg", Args: []string{"--timeout", "1", "--nopreview", "--output", "-"}},
		{Name: "fswebcam", Args: []string{"--no-banner", "--jpeg", "90", "-"}},
	}

	// mockable
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, errors.Wrapf(err, "%s (stderr: %s)", name, strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), nil
	}
	lookPath = exec.LookPath
)

// Command is an external program that writes one JPEG still to stdout.
type Command struct {
	Name string
	Args []string
}

// CommandSource captures frames by running an external camera program.
type CommandSource struct {
	mu       sync.Mutex
	commands []Command
	resolved *Command
}

var _ live.FrameSource = (*CommandSource)(nil)

func NewCommandSource(commands ...Command) *CommandSource {
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	return &CommandSource{commands: commands}
}

// Capture runs the first installed command. The command that worked is remembered.
func (src *CommandSource) Capture(ctx context.Context) ([]byte, error) {
	cmd, err := src.command()
	if err != nil {
		return nil, err
	}
	frame, err := runCommand(ctx, cmd.Name, cmd.Args...)
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	return frame, nil
}

func (src *CommandSource) command() (Command, error) {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.resolved != nil {
		return *src.resolved, nil
	}
	for _, c := range src.commands {
		if _, err := lookPath(c.Name); err == nil {
			c := c
			src.resolved = &c
			return c, nil
		}
	}
	return Command{}, ErrNoCamera
}

// DirSource serves the images of a directory in name order, looping forever.
type DirSource struct {
	mu    sync.Mutex
	files []string
	next  int
}

var _ live.FrameSource = (*DirSource)(nil)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func NewDirSource(dir string) (*DirSource, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading image directory")
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.Wrap(ErrNoImages, dir)
	}
	sort.Strings(files)
	return &DirSource{files: files}, nil
}

func (src *DirSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src.mu.Lock()
	file := src.files[src.next]
	src.next = (src.next + 1) % len(src.files)
	src.mu.Unlock()

	frame, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading frame")
	}
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	return frame, nil
}

// NewSource picks the frame source from the capture config:
// a directory of stills, a configured command, or the default camera commands.
func NewSource(conf core.CaptureConfig) (live.FrameSource, error) {
	switch {
	case conf.Dir != "":
		return NewDirSource(conf.Dir)
	case conf.Command != "":
		return NewCommandSource(Command{Name: conf.Command, Args: conf.Args}), nil
	}
	return NewCommandSource(), nil
}
