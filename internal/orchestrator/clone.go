package orchestrator

import (
	"maps"
	"slices"
)

// cloneResponse copies everything a caller could mutate, so a response held
// in the cache never shares maps, slices or pointed-to values with one that
// has been handed out.
func cloneResponse(r Response) Response {
	r.Slots = maps.Clone(r.Slots)
	r.Actions = slices.Clone(r.Actions)
	r.Route.Alternatives = slices.Clone(r.Route.Alternatives)
	r.Route.Passes = slices.Clone(r.Route.Passes)
	r.Safety.Categories = slices.Clone(r.Safety.Categories)
	if r.Answerability != nil {
		a := *r.Answerability
		a.MissingData = slices.Clone(a.MissingData)
		a.Suggestions = slices.Clone(a.Suggestions)
		r.Answerability = &a
	}
	if r.Fallback != nil {
		fb := *r.Fallback
		fb.Suggestions = slices.Clone(fb.Suggestions)
		fb.Actions = slices.Clone(fb.Actions)
		r.Fallback = &fb
	}
	if r.Review != nil {
		rv := *r.Review
		rv.Issues = slices.Clone(rv.Issues)
		r.Review = &rv
	}
	return r
}
