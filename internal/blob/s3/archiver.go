package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// multipartThreshold is the payload size above which ArchiveDump switches
// from a single PutObject to a multipart upload.
const multipartThreshold = 32 * 1024 * 1024

// DumpArchiver implements domain.DumpArchiver by uploading raw bulk-dump ZIP
// archives to object storage at dumps/{league}/{date}.zip. The raw bytes are
// stored untouched so a dump can be re-parsed later without refetching.
type DumpArchiver struct {
	writer domain.BlobWriter
}

// NewDumpArchiver creates a DumpArchiver that uploads through the given writer.
func NewDumpArchiver(writer domain.BlobWriter) *DumpArchiver {
	return &DumpArchiver{writer: writer}
}

// ArchiveDump uploads a raw dump archive and returns the object key it was
// stored under.
func (a *DumpArchiver) ArchiveDump(ctx context.Context, league string, fetchedAt time.Time, raw []byte) (string, error) {
	key := dumpKey(league, fetchedAt)

	if int64(len(raw)) > multipartThreshold {
		if err := a.writer.PutMultipart(ctx, key, bytes.NewReader(raw), minPartSize); err != nil {
			return "", fmt.Errorf("s3blob: archive dump %s: %w", key, err)
		}
		return key, nil
	}

	if err := a.writer.Put(ctx, key, bytes.NewReader(raw), "application/zip"); err != nil {
		return "", fmt.Errorf("s3blob: archive dump %s: %w", key, err)
	}
	return key, nil
}

// dumpKey builds the object key for a dump, partitioned by league and the
// UTC fetch date.
//
//	dumps/Settlers/2025-01-15.zip
func dumpKey(league string, fetchedAt time.Time) string {
	name := strings.ReplaceAll(league, "/", "_")
	return fmt.Sprintf("dumps/%s/%s.zip", name, fetchedAt.UTC().Format("2006-01-02"))
}

// Compile-time interface check.
var _ domain.DumpArchiver = (*DumpArchiver)(nil)
