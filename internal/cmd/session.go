package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/faisal-shah/logmerge/internal/logging"
	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/output"
	"github.com/faisal-shah/logmerge/internal/schema"
	"github.com/faisal-shah/logmerge/internal/store"
	"github.com/faisal-shah/logmerge/internal/watcher"
)

// newLogger builds the process logger on stderr so it never mixes with
// rendered rows on stdout.
func newLogger() *slog.Logger {
	return logging.New(os.Stderr, viper.GetString("log_format"), logging.ParseLevel(viper.GetString("log_level")))
}

// resolveFiles expands glob arguments and, when --dir is set, adds files
// discovered under it.
func resolveFiles(args []string, logger *slog.Logger) ([]string, error) {
	files := watcher.Expand(args, logger)

	if dir := viper.GetString("dir"); dir != "" {
		found, err := watcher.Discover(dir, viper.GetString("pattern"), viper.GetBool("recursive"))
		if err != nil {
			return nil, fmt.Errorf("discovering files in %s: %w", dir, err)
		}
		files = append(files, watcher.Expand(found, logger)...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files matched %v", args)
	}
	return files, nil
}

// view is the configured presentation of store rows.
type view struct {
	schema   *schema.Schema
	format   *output.Formatter
	renderer output.Renderer
	filter   store.Filter
}

func newView(w io.Writer) (*view, error) {
	sc, err := schema.Load(viper.GetString("schema"))
	if err != nil {
		return nil, err
	}

	columns := viper.GetStringSlice("columns")
	for _, col := range columns {
		if _, ok := sc.Field(col); !ok && col != model.SourceFileColumn {
			return nil, fmt.Errorf("unknown column %q (schema %s has %v)", col, sc.Name, sc.Columns())
		}
	}

	f := output.NewFormatter(sc, columns, viper.GetString("time_layout"))
	r, err := output.New(viper.GetString("output"), w, f)
	if err != nil {
		return nil, err
	}

	filter, err := store.ParseWhere(viper.GetStringSlice("where"))
	if err != nil {
		return nil, err
	}
	return &view{schema: sc, format: f, renderer: r, filter: filter}, nil
}

// render writes rec if it passes the row filter.
func (v *view) render(rec *model.Record) error {
	if v.filter != nil && !v.filter(rec) {
		return nil
	}
	return v.renderer.Render(store.Project(rec, v.format.Columns()))
}

// renderAll writes every matching row currently in st.
func (v *view) renderAll(st *store.Store) error {
	for row := range st.QueryRows(v.format.Columns(), v.filter) {
		if err := v.renderer.Render(row); err != nil {
			return err
		}
	}
	return nil
}
