// Package binder fills request structs for handler.Wrap.
//
// JSON decodes strict application/json bodies with a size cap. Path copies
// chi route parameters into fields tagged `path:"..."`. Binders return
// wrapped sentinel errors so an error handler can map them to 400/413/415.
package binder
