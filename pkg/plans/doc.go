// Package plans manages the plan catalog: create, look up and list plans,
// and render them in a requested currency through the fx package.
package plans
