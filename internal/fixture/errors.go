package fixture

import (
	"errors"
	"fmt"
)

// Kind classifies a run failure.
type Kind string

const (
	KindConfig    Kind = "config"
	KindDiscovery Kind = "discovery"
	KindIO        Kind = "io"
)

var (
	ErrSourceMissing       = errors.New("fixture source folder not found")
	ErrOutputParentMissing = errors.New("output root parent does not exist")
	ErrOverlap             = errors.New("staging path overlaps fixture source")
	ErrNoDescriptions      = errors.New("no URDF found in staged fixture")
)

// Error is returned by Run for every fatal condition.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func configErr(op, path string, err error) error {
	return &Error{Kind: KindConfig, Op: op, Path: path, Err: err}
}

func discoveryErr(op, path string, err error) error {
	return &Error{Kind: KindDiscovery, Op: op, Path: path, Err: err}
}

func ioErr(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return hasKind(err, KindConfig) }

// IsDiscovery reports whether err is a discovery error.
func IsDiscovery(err error) bool { return hasKind(err, KindDiscovery) }

// IsIO reports whether err is an I/O error.
func IsIO(err error) bool { return hasKind(err, KindIO) }

func hasKind(err error, k Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == k
	}
	return false
}
