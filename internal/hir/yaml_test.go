package hir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurorac/internal/types"
)

func writeModule(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "module.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadModuleDecodesStraightLineFunction(t *testing.T) {
	path := writeModule(t, `
module:
  name: demo
  functions:
    - name: add_one
      ret: i64
      params:
        - {name: x, type: i64}
      body:
        - kind: let
          name: y
          value: {kind: binary, op: add, lhs: {kind: name, name: x}, rhs: {kind: int, value: 1}}
        - kind: return
          value: {kind: name, name: y}
`)
	mod, err := LoadModule(path)
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)

	fn := mod.Functions[0]
	assert.Equal(t, "add_one", fn.Name)
	assert.True(t, types.Equal(types.I64, fn.Ret))
	require.Len(t, fn.Body, 2)

	let, ok := fn.Body[0].(*LetStmt)
	require.True(t, ok)
	bin, ok := let.Value.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpAdd, bin.Op)

	ret, ok := fn.Body[1].(*ReturnStmt)
	require.True(t, ok)
	name, ok := ret.Value.(*NameExpr)
	require.True(t, ok)
	assert.Equal(t, let.Binding.ID, name.Binding.ID)
}

func TestLoadModuleDecodesIfAndWhile(t *testing.T) {
	path := writeModule(t, `
module:
  name: demo
  functions:
    - name: branchy
      ret: i64
      params: []
      body:
        - kind: if
          cond: {kind: bool, bool: true}
          then:
            - kind: return
              value: {kind: int, value: 1}
          else:
            - kind: return
              value: {kind: int, value: 0}
        - kind: while
          cond: {kind: bool, bool: false}
          body: []
        - kind: return
          value: {kind: int, value: 2}
`)
	mod, err := LoadModule(path)
	require.NoError(t, err)
	fn := mod.Functions[0]
	require.Len(t, fn.Body, 3)
	_, ok := fn.Body[0].(*IfStmt)
	assert.True(t, ok)
	_, ok = fn.Body[1].(*WhileStmt)
	assert.True(t, ok)
}

func TestLoadModuleRejectsUnknownNames(t *testing.T) {
	path := writeModule(t, `
module:
  name: demo
  functions:
    - name: bad
      ret: i64
      params: []
      body:
        - kind: return
          value: {kind: name, name: nosuch}
`)
	_, err := LoadModule(path)
	assert.Error(t, err)
}
