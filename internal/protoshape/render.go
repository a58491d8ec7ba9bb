package protoshape

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render prints the generated file as .proto source.
func Render(r *Registry, w io.Writer) error {
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(r.File(), w)
}

// RenderDir writes the generated file under outDir at its FilePath.
func RenderDir(r *Registry, outDir string) error {
	fp := filepath.Join(outDir, filepath.FromSlash(r.File().Path()))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Render(r, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
