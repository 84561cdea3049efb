package stats

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/bdicache/hooking"
)

// CSVHook writes the item of every invocation as a row of a CSV file. The
// first item fixes the columns, so every item must be the same flat struct.
type CSVHook struct {
	path string
	file *os.File
	w    *bufio.Writer

	columns []string
	rows    [][]any

	bufferSize int
}

// NewCSVHook creates a hook that writes into path.csv. An empty path picks a
// unique file name.
func NewCSVHook(path string) *CSVHook {
	return &CSVHook{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the CSV file. It panics if the file already exists.
func (h *CSVHook) Init() {
	if h.path == "" {
		h.path = "bdicache_events_" + xid.New().String()
	}

	filename := h.path + ".csv"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}

	h.file = file
	h.w = bufio.NewWriter(file)

	atexit.Register(func() {
		if err := h.Close(); err != nil {
			panic(err)
		}
	})
}

// Path returns the file the hook writes into.
func (h *CSVHook) Path() string {
	return h.path + ".csv"
}

// Func buffers a row for ctx.Item.
func (h *CSVHook) Func(ctx hooking.HookCtx) {
	if ctx.Item == nil || h.file == nil {
		return
	}

	if h.columns == nil {
		h.columns = append([]string{"Pos"}, structs.Names(ctx.Item)...)
		fmt.Fprintln(h.w, strings.Join(h.columns, ", "))
	}

	row := append([]any{ctx.Pos.Name}, structs.Values(ctx.Item)...)
	if len(row) != len(h.columns) {
		panic(fmt.Sprintf("%T has %d fields, the file has %d columns",
			ctx.Item, len(row)-1, len(h.columns)-1))
	}

	h.rows = append(h.rows, row)
	if len(h.rows) >= h.bufferSize {
		h.Flush()
	}
}

// Flush writes the buffered rows to the file.
func (h *CSVHook) Flush() {
	if h.file == nil {
		return
	}

	for _, row := range h.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}

		fmt.Fprintln(h.w, strings.Join(cells, ", "))
	}

	h.rows = nil

	if err := h.w.Flush(); err != nil {
		panic(err)
	}
}

// Close flushes the rows and closes the file. Closing twice is a no-op.
func (h *CSVHook) Close() error {
	if h.file == nil {
		return nil
	}

	h.Flush()

	err := h.file.Close()
	h.file = nil

	return err
}
