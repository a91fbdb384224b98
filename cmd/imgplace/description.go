package main

import "encoding/json"

// imageDescription is the canonical identity imgplace uses for ID
// lookup and reuse: two displays with the same path, mtime, and cell
// geometry get the same ID. It is opaque to pkg/idstore/pkg/upload,
// which only compare it for equality.
type imageDescription struct {
	Path            string `json:"path"`
	MtimeEpochSecs  int64  `json:"mtime_epoch_seconds"`
	Cols            int    `json:"cols"`
	Rows            int    `json:"rows"`
}

func buildDescription(path string, mtimeEpochSecs int64, cols, rows int) string {
	d := imageDescription{Path: path, MtimeEpochSecs: mtimeEpochSecs, Cols: cols, Rows: rows}
	b, err := json.Marshal(d)
	if err != nil {
		// json.Marshal on a plain struct of strings/ints cannot fail.
		panic(err)
	}
	return string(b)
}

func parseDescription(raw string) (imageDescription, error) {
	var d imageDescription
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return imageDescription{}, err
	}
	return d, nil
}
