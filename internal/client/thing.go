package client

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/example/threadharvest/internal/model"
)

// Kind tags the variants of the platform's "kind"-wrapped JSON objects.
type Kind string

// Kinds the crawler understands. Anything else is ignored.
const (
	// KindListing wraps a page of children plus pagination cursors.
	KindListing Kind = "Listing"

	// KindComment wraps a single comment.
	KindComment Kind = "t1"

	// KindPost wraps a single thread submission.
	KindPost Kind = "t3"

	// KindMore is the continuation marker standing in for comments not
	// included in the current page. Resolved via a batched follow-up
	// request.
	KindMore Kind = "more"
)

// Thing is the platform's tagged union envelope. Every object in the
// wire protocol arrives as {"kind": ..., "data": ...}; the payload is
// decoded once here at the boundary rather than re-interpreted ad hoc
// at each call site.
type Thing struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Listing is a page of Things with pagination cursors.
type Listing struct {
	Children []Thing `json:"children"`
	After    string  `json:"after"`
	Before   string  `json:"before"`
}

// Post is the wire form of a thread submission.
type Post struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	CreatedUTC    float64 `json:"created_utc"`
	NumComments   int     `json:"num_comments"`
	Permalink     string  `json:"permalink"`
	LinkFlairText string  `json:"link_flair_text"`
}

// WireComment is the wire form of a comment.
type WireComment struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
	ParentID   string  `json:"parent_id"`
	Permalink  string  `json:"permalink"`
}

// MoreMarker is the wire form of a "load more comments" placeholder.
type MoreMarker struct {
	Count    int      `json:"count"`
	ParentID string   `json:"parent_id"`
	Children []string `json:"children"`
}

// postFullnamePrefix is prepended to a thread ID to form the "fullname"
// the platform uses in parent references and continuation requests.
const postFullnamePrefix = "t3_"

// Fullname returns the platform fullname for a thread ID.
func Fullname(threadID string) string {
	return postFullnamePrefix + threadID
}

// DecodeThing decodes a single kind-wrapped object.
func DecodeThing(raw json.RawMessage) (*Thing, error) {
	var t Thing
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &t, nil
}

// DecodeThingArray decodes a JSON array of kind-wrapped objects. The
// comment endpoint returns one of these: the post listing first, then
// the comment listing.
func DecodeThingArray(raw json.RawMessage) ([]Thing, error) {
	var things []Thing
	if err := json.Unmarshal(raw, &things); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return things, nil
}

// moreChildrenEnvelope is the response shape of the continuation
// endpoint: {"json": {"errors": [...], "data": {"things": [...]}}}.
type moreChildrenEnvelope struct {
	JSON struct {
		Data struct {
			Things []Thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// DecodeMoreChildren decodes a continuation response into its Things.
func DecodeMoreChildren(raw json.RawMessage) ([]Thing, error) {
	var env moreChildrenEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return env.JSON.Data.Things, nil
}

// Listing decodes the Thing's payload as a Listing.
func (t Thing) Listing() (*Listing, error) {
	if t.Kind != KindListing {
		return nil, fmt.Errorf("%w: kind %q is not a listing", ErrMalformedResponse, t.Kind)
	}
	var l Listing
	if err := json.Unmarshal(t.Data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &l, nil
}

// Post decodes the Thing's payload as a Post.
func (t Thing) Post() (*Post, error) {
	if t.Kind != KindPost {
		return nil, fmt.Errorf("%w: kind %q is not a post", ErrMalformedResponse, t.Kind)
	}
	var p Post
	if err := json.Unmarshal(t.Data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &p, nil
}

// Comment decodes the Thing's payload as a WireComment.
func (t Thing) Comment() (*WireComment, error) {
	if t.Kind != KindComment {
		return nil, fmt.Errorf("%w: kind %q is not a comment", ErrMalformedResponse, t.Kind)
	}
	var c WireComment
	if err := json.Unmarshal(t.Data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &c, nil
}

// More decodes the Thing's payload as a MoreMarker.
func (t Thing) More() (*MoreMarker, error) {
	if t.Kind != KindMore {
		return nil, fmt.Errorf("%w: kind %q is not a continuation marker", ErrMalformedResponse, t.Kind)
	}
	var m MoreMarker
	if err := json.Unmarshal(t.Data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &m, nil
}

// Thread converts a wire Post to the crawler's thread model. baseURL is
// the platform root used to absolutize the permalink.
func (p *Post) Thread(baseURL string) model.Thread {
	return model.Thread{
		ID:           p.ID,
		Title:        html.UnescapeString(p.Title),
		URL:          joinURL(baseURL, p.Permalink),
		Author:       p.Author,
		CreatedAt:    time.Unix(int64(p.CreatedUTC), 0).UTC(),
		CommentCount: p.NumComments,
		Flair:        p.LinkFlairText,
	}
}

// ToComment converts a wire comment to the crawler's comment model,
// attaching the owning thread's identity. The body arrives with HTML
// entities encoded and is decoded here.
func (c *WireComment) ToComment(thread model.Thread, baseURL string) model.Comment {
	return model.Comment{
		ID:          c.ID,
		Author:      c.Author,
		CreatedAt:   time.Unix(int64(c.CreatedUTC), 0).UTC(),
		Body:        html.UnescapeString(c.Body),
		URL:         joinURL(baseURL, c.Permalink),
		ThreadID:    thread.ID,
		ThreadTitle: thread.Title,
	}
}

// IsRootOf reports whether the comment's parent is the thread itself
// rather than another comment.
func (c *WireComment) IsRootOf(threadID string) bool {
	return c.ParentID == Fullname(threadID)
}

// IsRootOf reports whether the continuation marker hangs directly off
// the thread rather than off a nested comment.
func (m *MoreMarker) IsRootOf(threadID string) bool {
	return m.ParentID == Fullname(threadID)
}

// joinURL concatenates a base URL and a path without doubling slashes.
func joinURL(baseURL, path string) string {
	if path == "" {
		return baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
