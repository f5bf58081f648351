/*

Package l3c is a three-tier compiler back end.

Program Text (L3) ->
	parse (external collaborator) ->
L3 (linear three-address IR) ->
	liveness, context partitioning, tree building, tiling ->
L2 (symbolic registers + 15 physical registers) ->
	liveness, interference, coloring, iterated spilling ->
L1 (fully colored, no symbolic registers) ->
	print (external collaborator) ->
AT&T x86-64 assembly

*/
package l3c
