/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package log

import "fmt"

type token struct {
	key, value string
	inside     rune // shows whether it's inside a given collection, currently [ means it's an array
}

// tokenize splits a `key=value,key2=[v1,v2]` configuration line.
func tokenize(line string) ([]token, error) {
	var (
		tokens []token
		start  int
	)
	for start < len(line) {
		eq := start
		for eq < len(line) && line[eq] != '=' && line[eq] != ',' {
			eq++
		}
		if eq == len(line) || line[eq] == ',' {
			// a bare key without a value
			tokens = append(tokens, token{key: line[start:eq]})
			start = eq + 1
			continue
		}
		key := line[start:eq]
		i := eq + 1
		if i == len(line) {
			return nil, fmt.Errorf("key `%s=` with no value", key)
		}
		t := token{key: key}
		if line[i] == '[' {
			end := i + 1
			for end < len(line) && line[end] != ']' {
				end++
			}
			if end == len(line) {
				return nil, fmt.Errorf("array value for key `%s` didn't end", key)
			}
			t.value, t.inside = line[i+1:end], '['
			i = end + 1
			if i < len(line) && line[i] != ',' {
				return nil, fmt.Errorf("there was no ',' after an array with key '%s'", key)
			}
		} else {
			end := i
			for end < len(line) && line[end] != ',' {
				end++
			}
			t.value = line[i:end]
			i = end
		}
		tokens = append(tokens, t)
		start = i + 1
	}

	return tokens, nil
}
