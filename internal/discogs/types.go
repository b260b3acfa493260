package discogs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CollectionPage is one page of /users/{u}/collection/folders/0/releases.
type CollectionPage struct {
	Pagination *Pagination          `json:"pagination"`
	Releases   []*CollectionRelease `json:"releases"`
}

type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// CollectionRelease is one physical copy in the collection. Two copies of
// the same pressing share BasicInformation.ID but differ in InstanceID.
type CollectionRelease struct {
	ID               int64             `json:"id"`
	InstanceID       int64             `json:"instance_id"`
	FolderID         int64             `json:"folder_id"`
	Rating           int               `json:"rating"`
	DateAdded        string            `json:"date_added"`
	BasicInformation *BasicInformation `json:"basic_information"`

	// Raw is the record exactly as the API sent it.
	Raw json.RawMessage `json:"-"`
}

func (r *CollectionRelease) UnmarshalJSON(data []byte) error {
	type plain CollectionRelease
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = CollectionRelease(p)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type BasicInformation struct {
	ID          int64         `json:"id"`
	MasterID    int64         `json:"master_id"`
	Title       string        `json:"title"`
	Year        int           `json:"year"`
	Thumb       string        `json:"thumb"`
	CoverImage  string        `json:"cover_image"`
	ResourceURL string        `json:"resource_url"`
	Artists     []ArtistRef   `json:"artists"`
	Labels      []LabelRef    `json:"labels"`
	Formats     []FormatEntry `json:"formats"`
	Genres      []string      `json:"genres"`
	Styles      []string      `json:"styles"`
}

type ArtistRef struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Anv         string `json:"anv"`
	Join        string `json:"join"`
	ResourceURL string `json:"resource_url"`
}

type LabelRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Catno string `json:"catno"`
}

type FormatEntry struct {
	Name         string      `json:"name"`
	Qty          json.Number `json:"qty"`
	Text         string      `json:"text"`
	Descriptions []string    `json:"descriptions"`
}

// Validate reports the shape problems the collection pipeline cannot
// recover from.
func (p *CollectionPage) Validate() error {
	if p.Pagination == nil {
		return fmt.Errorf("%w: missing pagination", ErrMalformedResponse)
	}
	for i, r := range p.Releases {
		if r == nil || r.BasicInformation == nil {
			return fmt.Errorf("%w: release %d has no basic_information", ErrMalformedResponse, i)
		}
	}
	return nil
}

// HasMore reports whether another page follows this one.
func (p *CollectionPage) HasMore() bool {
	return p.Pagination != nil && p.Pagination.Page < p.Pagination.Pages
}

// Folder is a collection folder. Folder 0 ("All") holds every release.
type Folder struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Count       int    `json:"count"`
	ResourceURL string `json:"resource_url"`
}

type foldersResponse struct {
	Folders []Folder `json:"folders"`
}

// Artist is the subset of /artists/{id} the record-of-the-day view shows.
type Artist struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	RealName    string   `json:"realname"`
	Profile     string   `json:"profile"`
	URI         string   `json:"uri"`
	ResourceURL string   `json:"resource_url"`
	Images      []Image  `json:"images"`
	URLs        []string `json:"urls"`
}

type Image struct {
	Type   string `json:"type"`
	URI    string `json:"uri"`
	URI150 string `json:"uri150"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PrimaryImage returns the first image typed "primary", else the first
// image, else "".
func (a *Artist) PrimaryImage() string {
	if a == nil || len(a.Images) == 0 {
		return ""
	}
	for _, img := range a.Images {
		if img.Type == "primary" {
			return img.URI
		}
	}
	return a.Images[0].URI
}

// ShortProfile trims the biography to at most limit characters and appends
// "..." when it had to cut.
func (a *Artist) ShortProfile(limit int) string {
	if a == nil || strings.TrimSpace(a.Profile) == "" {
		return ""
	}
	r := []rune(a.Profile)
	if limit <= 0 || len(r) <= limit {
		return a.Profile
	}
	return string(r[:limit]) + "..."
}
