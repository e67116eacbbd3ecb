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

package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cc64/cc64/internal/codegen"
)

func writeSource(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestCompile_AssemblyModeWritesTextFile(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.c", "int main(void) { return 42; }")

	d, err := New(Options{Output: dir, Target: "linux-amd64", Syntax: codegen.ATT, Kind: Assembly, AssembleOnly: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := d.Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if filepath.Ext(out) != ".s" {
		t.Errorf("expected a .s output path, got %s", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("expected assembly file to exist: %v", err)
	}
}

func TestCompile_ObjectModeProducesELFExecutable(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.c", "int main(void) { return 42; }")

	d, err := New(Options{Output: dir, Target: "linux-amd64", Kind: Object})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := d.Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(raw) < 4 || string(raw[:4]) != "\x7fELF" {
		t.Errorf("expected an ELF executable, got header %x", raw[:min(4, len(raw))])
	}
}

func TestCompile_ObjectModeProducesDOS16Image(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.c", "int main(void) { return 1; }")

	d, err := New(Options{Output: dir, Target: "dos16", Kind: Object})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := d.Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if filepath.Ext(out) != ".com" {
		t.Errorf("expected a .com output path, got %s", out)
	}
}

func TestCompile_LocalStaticGetsDataSymbolNotStackSlot(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.c", `
int counter(void) {
	static int n = 0;
	n = n + 1;
	return n;
}
int main(void) { return counter(); }
`)

	d, err := New(Options{Output: dir, Target: "linux-amd64", Syntax: codegen.ATT, Kind: Assembly, AssembleOnly: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := d.Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	asm := string(raw)
	if !strings.Contains(asm, "counter.n.0") {
		t.Errorf("expected a unique data symbol for the local static, got:\n%s", asm)
	}
	if !strings.Contains(asm, ".data") {
		t.Errorf("expected the initialized static to land in .data, got:\n%s", asm)
	}
}

func TestCompile_StaticFunctionOmitsGlobl(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.c", `
static int helper(void) { return 1; }
int main(void) { return helper(); }
`)

	d, err := New(Options{Output: dir, Target: "linux-amd64", Syntax: codegen.ATT, Kind: Assembly, AssembleOnly: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := d.Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	asm := string(raw)
	if strings.Contains(asm, ".globl helper") {
		t.Errorf("static function helper must not be exported with .globl, got:\n%s", asm)
	}
	if !strings.Contains(asm, ".globl main") {
		t.Errorf("expected non-static main to still be exported, got:\n%s", asm)
	}
}

func TestNew_RejectsUnknownTarget(t *testing.T) {
	if _, err := New(Options{Target: "bogus-target"}); err == nil {
		t.Fatal("expected an error for an unregistered target")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
