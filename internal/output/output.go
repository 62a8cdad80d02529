// Package output encodes extraction results for the bagextract command.
package output

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/k0kubun/pp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/mattn/go-isatty"
	"github.com/modern-go/reflect2"
	"gopkg.in/yaml.v3"
)

// JSON is the standard library compatible configuration, except that NaN and infinite
// floats are written as null. Numeric environments read null back as NaN.
var JSON = func() jsoniter.API {
	api := jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}.Froze()
	api.RegisterExtension(&nonFiniteFloatExtension{})
	return api
}()

type nonFiniteFloatExtension struct {
	jsoniter.DummyExtension
}

func (ext *nonFiniteFloatExtension) CreateEncoder(typ reflect2.Type) jsoniter.ValEncoder {
	switch typ.Kind() {
	case reflect.Float32:
		return floatEncoder{bits: 32}
	case reflect.Float64:
		return floatEncoder{bits: 64}
	}
	return nil
}

type floatEncoder struct {
	bits int
}

func (enc floatEncoder) value(ptr unsafe.Pointer) float64 {
	if enc.bits == 32 {
		return float64(*(*float32)(ptr))
	}
	return *(*float64)(ptr)
}

func (enc floatEncoder) IsEmpty(ptr unsafe.Pointer) bool {
	return enc.value(ptr) == 0
}

func (enc floatEncoder) Encode(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	f := enc.value(ptr)
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		stream.WriteNil()
	case enc.bits == 32:
		stream.WriteFloat32(float32(f))
	default:
		stream.WriteFloat64(f)
	}
}

// Encode writes v to w in format, one of json, yaml or pretty.
func Encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		return JSON.NewEncoder(w).Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "pretty":
		pp.ColoringEnabled = isTerminal(w)
		_, err := pp.Fprintln(w, v)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Create opens the destination named by path, stdout when path is empty or "-". A .gz or
// .zst extension compresses what is written. Closing the returned writer flushes the
// compressor and closes the file, stdout is left open.
func Create(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	switch filepath.Ext(path) {
	case ".gz":
		return &stackedCloser{Writer: gzip.NewWriter(f), file: f}, nil
	case ".zst":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &stackedCloser{Writer: zw, file: f}, nil
	default:
		return f, nil
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

// stackedCloser closes a compressor and then the file below it.
type stackedCloser struct {
	io.Writer
	file *os.File
}

func (c *stackedCloser) Close() error {
	cerr := c.Writer.(io.Closer).Close()
	ferr := c.file.Close()
	if cerr != nil {
		return cerr
	}
	return ferr
}

func isTerminal(w io.Writer) bool {
	if nc, ok := w.(nopCloser); ok {
		w = nc.Writer
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
