package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/driftlab/skyfeed/internal/firehose"
	"github.com/driftlab/skyfeed/internal/models"
)

// Embed and facet feature type NSIDs.
const (
	embedImages   = "app.bsky.embed.images"
	embedExternal = "app.bsky.embed.external"
	facetTagType  = "app.bsky.richtext.facet#tag"
	facetLinkType = "app.bsky.richtext.facet#link"
)

// postRecord is the parsed content of an app.bsky.feed.post record.
type postRecord struct {
	Type      string      `json:"$type"`
	Text      string      `json:"text"`
	CreatedAt string      `json:"createdAt"`
	Langs     []string    `json:"langs"`
	Reply     *replyRef   `json:"reply,omitempty"`
	Facets    []facet     `json:"facets,omitempty"`
	Embed     *embed      `json:"embed,omitempty"`
	Labels    *selfLabels `json:"labels,omitempty"`
	Tags      []string    `json:"tags,omitempty"`
}

// replyRef contains references to the parent and root of a reply chain.
type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

// strongRef is a reference to a specific version of a record.
type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// facet is an inline rich-text annotation over a span of post text.
type facet struct {
	Features []facetFeature `json:"features"`
}

type facetFeature struct {
	Type string `json:"$type"`
	Tag  string `json:"tag,omitempty"`
	URI  string `json:"uri,omitempty"`
}

type embed struct {
	Type     string        `json:"$type"`
	Images   []embedImage  `json:"images,omitempty"`
	External *externalLink `json:"external,omitempty"`
}

type embedImage struct {
	Alt string `json:"alt"`
}

type externalLink struct {
	URI string `json:"uri"`
}

type selfLabels struct {
	Values []labelValue `json:"values"`
}

type labelValue struct {
	Val string `json:"val"`
}

// subjectRecord is the parsed content of a like or repost record.
type subjectRecord struct {
	Subject strongRef `json:"subject"`
}

// graphRecord is the parsed content of a block or follow record.
type graphRecord struct {
	Subject   string `json:"subject"`
	CreatedAt string `json:"createdAt"`
}

// normalizePost builds the stored Post row from a decoded create event.
func normalizePost(event *firehose.CommitEvent, rec *postRecord, indexedAt time.Time) *models.Post {
	post := &models.Post{
		URI:       event.URI(),
		CID:       event.CID,
		Author:    event.Actor,
		IndexedAt: indexedAt,
		Text:      rec.Text,
		Langs:     strings.Join(rec.Langs, ","),
	}

	tags := append([]string(nil), rec.Tags...)
	var links []string
	for _, f := range rec.Facets {
		for _, feat := range f.Features {
			switch feat.Type {
			case facetTagType:
				if feat.Tag != "" {
					tags = append(tags, feat.Tag)
				}
			case facetLinkType:
				if feat.URI != "" {
					links = append(links, feat.URI)
				}
			}
		}
	}
	post.Tags = strings.Join(dedupe(tags), ",")
	post.Links = strings.Join(links, ",")

	if rec.Embed != nil {
		switch rec.Embed.Type {
		case embedImages:
			post.HasImage = true
			var alts []string
			for _, img := range rec.Embed.Images {
				if img.Alt != "" {
					alts = append(alts, img.Alt)
				}
			}
			if len(alts) > 0 {
				// Errors are impossible for a string slice.
				encoded, _ := json.Marshal(alts)
				post.AltText = string(encoded)
			}
		case embedExternal:
			if rec.Embed.External != nil {
				post.EmbedURL = rec.Embed.External.URI
			}
		}
	}

	if rec.Labels != nil {
		var vals []string
		for _, v := range rec.Labels.Values {
			if v.Val != "" {
				vals = append(vals, v.Val)
			}
		}
		post.Labels = strings.Join(vals, ",")
	}

	if rec.Reply != nil {
		post.RootURI = rec.Reply.Root.URI
	}

	return post
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// parseCreatedAt parses a record timestamp, falling back to now for
// records with malformed dates.
func parseCreatedAt(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
