// Package models contains the GORM persistence models. Each model maps to
// one table and converts to and from its domain entity with ToDomain and
// FromDomain; domain code never sees these types.
package models
