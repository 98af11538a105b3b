// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stardict

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ianlewis/sdengine/dict"
	"github.com/ianlewis/sdengine/idx"
	"github.com/ianlewis/sdengine/internal/folding"
	"github.com/ianlewis/sdengine/internal/metrics"
)

// hit is a record matched by a lookup.
type hit struct {
	record *idx.Word
	via    string
	err    error
}

// recordKey identifies a definition in the .dict file.
type recordKey struct {
	offset, size uint64
}

// Lookup returns the definitions for headword. Every record matching the
// headword is returned in index order, including duplicate records that share
// a definition. Records reached through synonyms or links are skipped if their
// definition was already returned.
//
// The returned error wraps [ErrNotFound] if nothing matches. Errors that
// make the dictionary unusable, such as a malformed index, are returned
// directly. Errors reading a single definition are set on its [Entry] and the
// other definitions are still returned.
func (s *Stardict) Lookup(ctx context.Context, headword string) ([]*Entry, error) {
	entries, err := s.lookup(ctx, headword)
	switch {
	case err == nil:
		s.metrics.Lookup(metrics.LookupFound)
	case errors.Is(err, ErrNotFound):
		s.metrics.Lookup(metrics.LookupNotFound)
	default:
		s.metrics.Lookup(metrics.LookupError)
	}
	return entries, err
}

func (s *Stardict) lookup(ctx context.Context, headword string) ([]*Entry, error) {
	query, err := folding.String(s.options.Folder, headword)
	if err != nil {
		return nil, fmt.Errorf("folding query %q: %w", headword, err)
	}

	index, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}

	var hits []hit
	for _, w := range index.Search(query) {
		hits = append(hits, hit{record: w})
	}

	sy, err := s.Syn()
	if err != nil {
		return nil, err
	}
	if sy != nil {
		synonyms, err := sy.Search(headword)
		if err != nil {
			return nil, fmt.Errorf("searching synonyms: %w", err)
		}
		for _, w := range synonyms {
			r := index.At(int(w.OriginalWordIndex))
			if r == nil {
				hits = append(hits, hit{
					via: w.Word,
					err: fmt.Errorf("%w: %q refers to record %d of %d",
						ErrInvalidSynonym, w.Word, w.OriginalWordIndex, index.Len()),
				})
				continue
			}
			hits = append(hits, hit{record: r, via: w.Word})
		}
	}

	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, headword)
	}

	d, dictErr := s.Dict()
	seen := map[recordKey]bool{}
	var entries []*Entry
	for _, h := range hits {
		if h.err != nil {
			s.logger.Warn("reading definition", "headword", headword, "error", h.err)
			entries = append(entries, &Entry{Headword: h.via, Via: h.via, Err: h.err})
			continue
		}

		k := recordKey{h.record.Offset, h.record.Size}
		if seen[k] && h.via != "" {
			continue
		}
		seen[k] = true

		e := &Entry{
			Headword: h.record.Word,
			Record:   h.record,
			Via:      h.via,
		}
		if dictErr != nil {
			e.Err = dictErr
			entries = append(entries, e)
			continue
		}

		e.Data, e.Err = s.definition(d, h.record)
		target, isLink := s.linkTarget(e.Data)
		switch {
		case e.Err != nil:
		case isLink && h.via != "":
			e.Data = nil
			e.Err = fmt.Errorf("%w: synonym %q refers to link %q", ErrRedirectChain, h.via, target)
		case isLink:
			entries = append(entries, s.follow(index, d, e, target, seen)...)
			continue
		}
		if e.Err != nil {
			s.logger.Warn("reading definition", "headword", e.Headword, "error", e.Err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// follow resolves the link of e to the records of target.
func (s *Stardict) follow(index *idx.Idx, d *dict.Dict, e *Entry, target string, seen map[recordKey]bool) []*Entry {
	query, err := folding.String(s.options.Folder, target)
	if err != nil {
		e.Data = nil
		e.Err = fmt.Errorf("folding link target %q: %w", target, err)
		return []*Entry{e}
	}

	records := index.Search(query)
	if len(records) == 0 {
		e.Data = nil
		e.Err = fmt.Errorf("%w: %q links to %q", ErrBrokenLink, e.Headword, target)
		s.logger.Warn("reading definition", "headword", e.Headword, "error", e.Err)
		return []*Entry{e}
	}

	var entries []*Entry
	for _, r := range records {
		k := recordKey{r.Offset, r.Size}
		if seen[k] {
			continue
		}
		seen[k] = true

		te := &Entry{
			Headword: e.Headword,
			Record:   r,
			Via:      e.Via,
			Link:     target,
		}
		te.Data, te.Err = s.definition(d, r)
		if next, ok := s.linkTarget(te.Data); ok && te.Err == nil {
			te.Data = nil
			te.Err = fmt.Errorf("%w: %q links to %q which links to %q", ErrRedirectChain, e.Headword, target, next)
		}
		if te.Err != nil {
			s.logger.Warn("reading definition", "headword", e.Headword, "link", target, "error", te.Err)
		}
		entries = append(entries, te)
	}
	return entries
}

// definition reads and parses the definition of r.
func (s *Stardict) definition(d *dict.Dict, r *idx.Word) ([]*dict.Data, error) {
	w, err := d.Word(r)
	if err != nil {
		return nil, fmt.Errorf("reading definition of %q: %w", r.Word, err)
	}
	return w.Data, nil
}

// linkTarget returns the target headword if data is a link definition. A link
// is a single text item starting with the link prefix.
func (s *Stardict) linkTarget(data []*dict.Data) (string, bool) {
	if len(data) != 1 || !data[0].Type.IsString() {
		return "", false
	}
	text := strings.TrimSpace(string(data[0].Data))
	target, ok := strings.CutPrefix(text, s.options.LinkPrefix)
	if !ok {
		return "", false
	}
	target = strings.TrimSpace(target)
	return target, target != ""
}
