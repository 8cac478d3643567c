package pde

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"lattice-pricer/internal/model"
)

// WriteCSV writes the retained grid, one row per (time, spot) node. The
// action column is empty when the solve kept no actions.
func (r *Results) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.EncodeCSV(f)
}

// EncodeCSV is WriteCSV against any writer.
func (r *Results) EncodeCSV(out io.Writer) error {
	w := csv.NewWriter(out)

	header := []string{
		"time_index",
		"time",
		"spot_index",
		"spot",
		"value",
		"action",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	spots := r.Spots[0]
	for i, vals := range r.Values {
		var acts []model.Action
		if i < len(r.Actions) {
			acts = r.Actions[i]
		}
		for j, v := range vals {
			action := ""
			if j < len(acts) {
				action = string(acts[j])
			}
			row := []string{
				strconv.Itoa(i),
				fmtFloat(r.Times[i]),
				strconv.Itoa(j),
				fmtFloat(spots[j]),
				fmtFloat(v),
				action,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
