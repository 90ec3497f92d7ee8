// Package admin implements landkeeper's operator HTTP surface (spec
// §4.6 "Admin surface"): inspecting and retiring live land instances,
// aggregate stats, and kicking off a replay re-evaluation run.
//
// Every request authenticates via an API key, carried as the X-API-Key
// header or an apiKey query parameter, and is authorized against a role
// hierarchy: admin sees and does everything, including retiring lands;
// operator can read and start replays but not retire lands; viewer can
// only read.
package admin
