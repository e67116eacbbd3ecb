// Copyright 2026 cc64 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package refcheck is a test-only differential oracle: it parses a
// translation unit with modernc.org/cc/v4, a mature independent C front
// end, the same way main.go's TranslateUnit.parseSource does for the
// teacher's clang-ABI pipeline. cc64's own lexer/parser never import this
// package; it exists solely so _test.go files can ask "does a mature C
// front end also accept this program" before asserting what cc64 itself
// does with it, catching the case where a parser test's fixture was never
// valid C in the first place.
package refcheck

import (
	"fmt"

	"modernc.org/cc/v4"
)

// Accepts reports whether src parses as a freestanding translation unit
// under modernc.org/cc/v4's linux/amd64 configuration. It returns the
// parse error (nil on success) rather than a bool so callers can surface
// the reference compiler's own diagnostic on mismatch.
func Accepts(name string, src []byte) error {
	cfg, err := cc.NewConfig("linux", "amd64")
	if err != nil {
		return fmt.Errorf("refcheck: config: %w", err)
	}
	_, err = cc.Parse(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: name, Value: string(src)},
	})
	return err
}
