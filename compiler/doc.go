/*

Process of compilation

AST Document (yaml) ->
	load ->
Abstract Syntax Tree (ast) ->
	analyze ->
Checked Program and Environment (env) ->
	generate ->
WebAssembly Text (wat)

WebAssembly Text ->
	parse ->
Module (asm) ->
	link with host procedures (host) ->
Reference Machine (vm) ->
	run ->
Result

*/
package compiler
