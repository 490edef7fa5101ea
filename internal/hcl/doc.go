// Package hcl provides the concrete HCL implementation for template
// loading. It is responsible for file parsing and for translating HCL
// expressions back into the document tree the stack package interprets, so
// a template written in HCL and one written in YAML load into identical
// stacks.
package hcl
