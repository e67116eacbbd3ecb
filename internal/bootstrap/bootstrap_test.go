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

package bootstrap

import (
	"strings"
	"testing"
)

func TestStage_ConvergesOnRepeatedCompilation(t *testing.T) {
	src := []byte("int main(void) { return 1 + 2; }")
	out, err := Stage(src, 3)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if !strings.Contains(string(out), "main:") {
		t.Errorf("expected main label in stage output:\n%s", out)
	}
}

func TestStage_RejectsZeroStageCount(t *testing.T) {
	if _, err := Stage([]byte("int main(void){return 0;}"), 0); err == nil {
		t.Fatal("expected an error for a zero stage count")
	}
}
