/*

Process of compilation

Abstract Syntax Tree (ast, read from yaml) ->
	lower (front) ->
Intermediate Representation (ir) ->
	liveness (df) ->
	emit (back) ->
Assembly Text (nasm, x86-64 SysV) ->
	nasm, ld ->
Binary Executable

Debug mode also writes the IR as text next to the source (format).

*/
package compiler
