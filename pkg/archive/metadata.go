package archive

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/matzehuels/cbzkit/pkg/errors"
)

// MaxCommentLen is the largest zip comment the format can carry.
const MaxCommentLen = math.MaxUint16

// AppID identifies cbzkit in the metadata it writes.
const AppID = "cbzkit"

// Metadata is the ComicBookInfo document stored in the zip comment.
// Unknown top-level keys written by other tools are preserved in Extra.
type Metadata struct {
	AppID        string         `json:"appID,omitempty"`
	LastModified *time.Time     `json:"lastModified,omitempty"`
	Info         *ComicBookInfo `json:"ComicBookInfo/1.0,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ComicBookInfo is the ComicBookInfo/1.0 record. Every field is optional.
type ComicBookInfo struct {
	Series           string   `json:"series,omitempty"`
	Title            string   `json:"title,omitempty"`
	Publisher        string   `json:"publisher,omitempty"`
	PublicationMonth int      `json:"publicationMonth,omitempty"`
	PublicationYear  int      `json:"publicationYear,omitempty"`
	Issue            int      `json:"issue,omitempty"`
	NumberOfIssues   int      `json:"numberOfIssues,omitempty"`
	Volume           int      `json:"volume,omitempty"`
	NumberOfVolumes  int      `json:"numberOfVolumes,omitempty"`
	Rating           int      `json:"rating,omitempty"`
	Genre            string   `json:"genre,omitempty"`
	Language         string   `json:"language,omitempty"`
	Country          string   `json:"country,omitempty"`
	Comments         string   `json:"comments,omitempty"`
	Credits          []Credit `json:"credits,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// Credit names a contributor.
type Credit struct {
	Person  string `json:"person,omitempty"`
	Role    string `json:"role,omitempty"`
	Primary string `json:"primary,omitempty"` // "YES" or "NO"
}

// Empty reports whether the record has no fields set.
func (c *ComicBookInfo) Empty() bool {
	if c == nil {
		return true
	}
	return c.Series == "" && c.Title == "" && c.Publisher == "" &&
		c.PublicationMonth == 0 && c.PublicationYear == 0 &&
		c.Issue == 0 && c.NumberOfIssues == 0 && c.Volume == 0 && c.NumberOfVolumes == 0 &&
		c.Rating == 0 && c.Genre == "" && c.Language == "" && c.Country == "" &&
		c.Comments == "" && len(c.Credits) == 0 && len(c.Tags) == 0
}

// Validate checks field ranges.
func (c *ComicBookInfo) Validate() error {
	if c == nil {
		return nil
	}
	if c.PublicationMonth < 0 || c.PublicationMonth > 12 {
		return errors.New(errors.ErrCodeInvalidInput, "publication month must be 1-12, got %d", c.PublicationMonth)
	}
	if c.Rating < 0 || c.Rating > 5 {
		return errors.New(errors.ErrCodeInvalidInput, "rating must be 0-5, got %d", c.Rating)
	}
	for _, n := range []int{c.PublicationYear, c.Issue, c.NumberOfIssues, c.Volume, c.NumberOfVolumes} {
		if n < 0 || n > math.MaxUint16 {
			return errors.New(errors.ErrCodeInvalidInput, "numeric metadata out of range: %d", n)
		}
	}
	for _, cr := range c.Credits {
		switch strings.ToUpper(cr.Primary) {
		case "", "YES", "NO":
		default:
			return errors.New(errors.ErrCodeInvalidInput, "credit primary must be YES or NO, got %q", cr.Primary)
		}
	}
	return nil
}

// MarshalJSON merges Extra with the known keys.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type known Metadata
	base, err := json.Marshal(known(m))
	if err != nil || len(m.Extra) == 0 {
		return base, err
	}

	merged := make(map[string]json.RawMessage, len(m.Extra)+3)
	for k, v := range m.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON keeps unknown keys in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type known Metadata
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range []string{"appID", "lastModified", "ComicBookInfo/1.0"} {
		delete(all, key)
	}
	*m = Metadata(k)
	if len(all) > 0 {
		m.Extra = all
	}
	return nil
}

// EncodeComment serializes m for the zip comment.
func EncodeComment(m *Metadata) (string, error) {
	if m == nil {
		return "", nil
	}
	if err := m.Info.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	if len(data) > MaxCommentLen {
		return "", errors.New(errors.ErrCodeMetadataTooLarge,
			"metadata is %d bytes, zip comments hold at most %d", len(data), MaxCommentLen)
	}
	return string(data), nil
}

// DecodeComment parses a zip comment. An empty comment yields nil.
func DecodeComment(comment string) (*Metadata, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(comment), &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "archive comment is not ComicBookInfo JSON")
	}
	return &m, nil
}
