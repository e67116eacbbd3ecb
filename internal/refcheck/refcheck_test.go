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

package refcheck

import "testing"

func TestAccepts_ValidTranslationUnit(t *testing.T) {
	src := []byte("int main(void) { return 0; }")
	if err := Accepts("valid.c", src); err != nil {
		t.Fatalf("expected the reference compiler to accept a minimal valid program: %v", err)
	}
}

func TestAccepts_RejectsSyntaxError(t *testing.T) {
	src := []byte("int main(void) { return )(; }")
	if err := Accepts("invalid.c", src); err == nil {
		t.Fatal("expected the reference compiler to reject malformed syntax")
	}
}
