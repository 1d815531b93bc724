package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"
)

// CacheName identifies this cache in Cache-Status headers.
const CacheName = "sitemapd"

// Header renders s as an RFC 9211 Cache-Status list member, e.g.
//
//	sitemapd;hit;ttl=3512
//	sitemapd;fwd=uri-miss;stored
//	sitemapd;hit;fwd=stale
func (s Status) Header() string {
	item := httpsfv.NewItem(httpsfv.Token(CacheName))
	switch s.Outcome {
	case Hit:
		item.Params.Add("hit", true)
		item.Params.Add("ttl", int64(s.TTL.Seconds()))
	case Stale:
		item.Params.Add("hit", true)
		item.Params.Add("fwd", httpsfv.Token("stale"))
	default:
		item.Params.Add("fwd", httpsfv.Token("uri-miss"))
		if s.Stored {
			item.Params.Add("stored", true)
		}
		if s.Collapsed {
			item.Params.Add("collapsed", true)
		}
	}

	out, err := httpsfv.Marshal(httpsfv.List{item})
	if err != nil {
		// Every value above is a valid bare item.
		return CacheName
	}
	return out
}

// ParseStatus reads the member named CacheName from a Cache-Status header.
func ParseStatus(header string) (Status, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Status{}, errors.New("empty Cache-Status header")
	}

	list, err := httpsfv.UnmarshalList([]string{header})
	if err != nil {
		return Status{}, fmt.Errorf("invalid Cache-Status header: %w", err)
	}

	for _, member := range list {
		item, ok := member.(httpsfv.Item)
		if !ok {
			continue
		}
		if name, _ := item.Value.(httpsfv.Token); string(name) != CacheName {
			continue
		}

		var s Status
		if hit, _ := item.Params.Get("hit"); hit == true {
			s.Outcome = Hit
		}
		if fwd, ok := item.Params.Get("fwd"); ok {
			if tok, _ := fwd.(httpsfv.Token); tok == "stale" {
				s.Outcome = Stale
			}
		}
		if ttl, ok := item.Params.Get("ttl"); ok {
			if n, ok := ttl.(int64); ok {
				s.TTL = time.Duration(n) * time.Second
			}
		}
		if v, _ := item.Params.Get("stored"); v == true {
			s.Stored = true
		}
		if v, _ := item.Params.Get("collapsed"); v == true {
			s.Collapsed = true
		}
		return s, nil
	}
	return Status{}, fmt.Errorf("no %s member in Cache-Status header", CacheName)
}
