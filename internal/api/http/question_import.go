package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-placement/internal/quiz"
	"github.com/mind-engage/mindengage-placement/internal/storage"
)

const maxImportBytes = 4 << 20

var importColumns = []string{"question text", "option a", "option b", "option c", "option d", "correct option"}

var sampleQuestion = []string{"What is 12 x 12?", "124", "144", "132", "154", "B", "2"}

// writeSampleQuestions writes an import sheet with the header and one example
// row. The Marks column is optional on import.
func writeSampleQuestions(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Question Text", "Option A", "Option B", "Option C", "Option D", "Correct Option", "Marks"}); err != nil {
		return err
	}
	if err := cw.Write(sampleQuestion); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// GET /admin/questions/sample
func SampleQuestionsHandler(log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := writeSampleQuestions(&buf); err != nil {
			writeError(w, log, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="questions_sample.csv"`)
		_, _ = w.Write(buf.Bytes())
	}
}

// parseQuestionsCSV reads the question import sheet. Rows with a blank
// question text are skipped; a blank Marks cell means the default.
func parseQuestionsCSV(r io.Reader) ([]quiz.QuestionInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, k := range importColumns {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	cell := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := []quiz.QuestionInput{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		text := cell(rec, "question text")
		if text == "" {
			continue
		}
		in := quiz.QuestionInput{
			Text:    text,
			Options: [4]string{cell(rec, "option a"), cell(rec, "option b"), cell(rec, "option c"), cell(rec, "option d")},
			Correct: strings.ToUpper(cell(rec, "correct option")),
		}
		if m := cell(rec, "marks"); m != "" {
			v, err := strconv.ParseFloat(m, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad marks %q", line, m)
			}
			in.Marks = &v
		}
		rows = append(rows, in)
	}
	return rows, nil
}

// POST /admin/quizzes/{quizID}/questions/import  (multipart "file" or text/csv body)
//
// The upload is kept in the blob store once every row has been accepted.
func ImportQuestionsHandler(cat *quiz.Catalog, blobs storage.BlobStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "quizID")
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

		var (
			src  io.Reader = r.Body
			name           = "questions.csv"
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			f, hdr, err := r.FormFile("file")
			if err != nil {
				badRequest(w, "file is required")
				return
			}
			defer f.Close()
			src, name = f, hdr.Filename
		}
		raw, err := io.ReadAll(src)
		if err != nil {
			badRequest(w, "read upload: "+err.Error())
			return
		}
		rows, err := parseQuestionsCSV(bytes.NewReader(raw))
		if err != nil {
			badRequest(w, "bad csv: "+err.Error())
			return
		}
		added, err := cat.ImportQuestions(r.Context(), id, rows)
		if err != nil {
			writeError(w, log, err)
			return
		}

		resp := map[string]any{"imported": len(added), "questions": added}
		if blobs != nil {
			key, err := blobs.Put(r.Context(), storage.ImportKey(id, cat.Clock().Now(), name), bytes.NewReader(raw))
			if err != nil {
				log.WithError(err).WithField("quiz_id", id).Warn("keep import upload")
			} else {
				resp["upload_key"] = key
			}
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}
