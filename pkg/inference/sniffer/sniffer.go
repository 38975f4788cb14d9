// Package sniffer withholds tool-call directive text from display output.
//
// Model output streams in arbitrary chunk boundaries, so a directive marker
// like [TOOL_REQUEST] may arrive split across any number of deltas. The
// Sniffer buffers just enough of the stream tail to decide whether a marker
// is forming: text that cannot be part of a marker is forwarded immediately,
// a partial marker prefix is withheld, and once a full marker is confirmed
// everything from the marker onward is suppressed for the rest of the stream.
package sniffer

import "strings"

// Sniffer scans one model output stream for directive markers. It is not
// safe for concurrent use; each inference stream gets its own Sniffer.
type Sniffer struct {
	sentinels []string
	pending   strings.Builder
	suppress  bool
}

func New(sentinels ...string) *Sniffer {
	return &Sniffer{sentinels: sentinels}
}

// Suppressed reports whether a full marker has been confirmed. Once true it
// stays true for the lifetime of the stream.
func (s *Sniffer) Suppressed() bool { return s.suppress }

// Feed consumes the next raw delta and returns the text safe to display.
// The returned string may lag the input when a marker prefix is being
// withheld, and is empty once suppression has started.
func (s *Sniffer) Feed(delta string) string {
	if s.suppress {
		return ""
	}
	s.pending.WriteString(delta)
	buf := s.pending.String()

	if idx := s.earliestMatch(buf); idx >= 0 {
		s.suppress = true
		s.pending.Reset()
		return buf[:idx]
	}

	// Withhold the longest tail that could still grow into a marker.
	hold := s.longestPrefixTail(buf)
	out := buf[:len(buf)-hold]
	s.pending.Reset()
	s.pending.WriteString(buf[len(buf)-hold:])
	return out
}

// Flush releases any withheld tail at end of stream. Text that looked like
// the start of a marker but never completed is ordinary prose after all.
// Under suppression there is nothing to release.
func (s *Sniffer) Flush() string {
	if s.suppress {
		return ""
	}
	out := s.pending.String()
	s.pending.Reset()
	return out
}

func (s *Sniffer) earliestMatch(buf string) int {
	best := -1
	for _, sent := range s.sentinels {
		if idx := strings.Index(buf, sent); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

// longestPrefixTail returns the length of the longest suffix of buf that is
// a strict prefix of any sentinel.
func (s *Sniffer) longestPrefixTail(buf string) int {
	best := 0
	for _, sent := range s.sentinels {
		maxN := len(sent) - 1
		if maxN > len(buf) {
			maxN = len(buf)
		}
		for n := maxN; n > best; n-- {
			if strings.HasPrefix(sent, buf[len(buf)-n:]) {
				best = n
				break
			}
		}
	}
	return best
}
