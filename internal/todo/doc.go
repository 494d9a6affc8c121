// Package todo is the sample domain built on the crud library: lists owned by
// users and the items they contain.
package todo
