// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package metafile

import "fmt"

// rawEntry is one key/value pair of a top-level bencoded dictionary, holding
// the still-encoded bytes of both. jackpal/bencode-go has no RawMessage
// equivalent, so a top-level dictionary that must be re-serialized with one
// key's value byte-for-byte untouched (the "info" sub-dictionary, whose
// SHA-1 is the torrent's info-hash) has to be scanned by hand instead of
// routed fully through that library.
type rawEntry struct {
	key      string
	keyRaw   []byte
	valueRaw []byte
}

// parseTopLevelDict scans a bencoded dictionary in b, returning its entries
// in encounter order with each value's raw encoded bytes intact.
func parseTopLevelDict(b []byte) ([]rawEntry, error) {
	if len(b) == 0 || b[0] != 'd' {
		return nil, fmt.Errorf("metafile is not a bencoded dictionary")
	}
	i := 1
	var entries []rawEntry
	for {
		if i >= len(b) {
			return nil, fmt.Errorf("unterminated dictionary")
		}
		if b[i] == 'e' {
			return entries, nil
		}
		keyStart := i
		keyEnd, err := skipValue(b, i)
		if err != nil {
			return nil, fmt.Errorf("scan dictionary key: %s", err)
		}
		key, err := decodeByteString(b[keyStart:keyEnd])
		if err != nil {
			return nil, fmt.Errorf("decode dictionary key: %s", err)
		}
		valueStart := keyEnd
		valueEnd, err := skipValue(b, valueStart)
		if err != nil {
			return nil, fmt.Errorf("scan value for key %q: %s", key, err)
		}
		entries = append(entries, rawEntry{
			key:      key,
			keyRaw:   b[keyStart:keyEnd],
			valueRaw: b[valueStart:valueEnd],
		})
		i = valueEnd
	}
}

// skipValue returns the index immediately past the single bencoded value
// (byte string, integer, list, or dictionary) starting at b[i].
func skipValue(b []byte, i int) (int, error) {
	if i >= len(b) {
		return 0, fmt.Errorf("unexpected end of input")
	}
	switch {
	case b[i] >= '0' && b[i] <= '9':
		colon := i
		for colon < len(b) && b[colon] != ':' {
			colon++
		}
		if colon >= len(b) {
			return 0, fmt.Errorf("malformed byte string length")
		}
		length := 0
		for _, c := range b[i:colon] {
			length = length*10 + int(c-'0')
		}
		end := colon + 1 + length
		if end > len(b) {
			return 0, fmt.Errorf("byte string overruns input")
		}
		return end, nil
	case b[i] == 'i':
		end := i + 1
		for end < len(b) && b[end] != 'e' {
			end++
		}
		if end >= len(b) {
			return 0, fmt.Errorf("unterminated integer")
		}
		return end + 1, nil
	case b[i] == 'l':
		j := i + 1
		for {
			if j >= len(b) {
				return 0, fmt.Errorf("unterminated list")
			}
			if b[j] == 'e' {
				return j + 1, nil
			}
			next, err := skipValue(b, j)
			if err != nil {
				return 0, err
			}
			j = next
		}
	case b[i] == 'd':
		j := i + 1
		for {
			if j >= len(b) {
				return 0, fmt.Errorf("unterminated dictionary")
			}
			if b[j] == 'e' {
				return j + 1, nil
			}
			next, err := skipValue(b, j) // key
			if err != nil {
				return 0, err
			}
			next, err = skipValue(b, next) // value
			if err != nil {
				return 0, err
			}
			j = next
		}
	default:
		return 0, fmt.Errorf("unrecognized bencode tag %q", b[i])
	}
}

func decodeByteString(b []byte) (string, error) {
	colon := 0
	for colon < len(b) && b[colon] != ':' {
		colon++
	}
	if colon >= len(b) {
		return "", fmt.Errorf("malformed byte string")
	}
	return string(b[colon+1:]), nil
}
