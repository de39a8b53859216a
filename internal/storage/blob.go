package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// ImportPrefix is where the uploads of one quiz live.
func ImportPrefix(quizID int64) string {
	return fmt.Sprintf("imports/quiz-%d", quizID)
}

// ImportKey names an uploaded question file. Only the base of name is kept.
func ImportKey(quizID int64, at time.Time, name string) string {
	base := path.Base("/" + name)
	if base == "/" || base == "." {
		base = "questions.csv"
	}
	return fmt.Sprintf("%s/%d-%s", ImportPrefix(quizID), at.Unix(), base)
}
