package models

// ClassType classifies a parsed class file.
type ClassType string

const (
	ClassTypeClass         ClassType = "class"
	ClassTypeAbstractClass ClassType = "abstract class"
	ClassTypeInterface     ClassType = "interface"
	ClassTypeExternal      ClassType = "unknown external class"
)

// ValidClassTypes is the set of all valid class types.
var ValidClassTypes = []ClassType{
	ClassTypeClass,
	ClassTypeAbstractClass,
	ClassTypeInterface,
	ClassTypeExternal,
}

// IsValid returns true if the class type is recognized.
func (ct ClassType) IsValid() bool {
	for _, v := range ValidClassTypes {
		if ct == v {
			return true
		}
	}
	return false
}

// ClassInfo is the result of parsing one class file.
type ClassInfo struct {
	Name       string    `json:"name"`
	Type       ClassType `json:"type"`
	Inner      bool      `json:"inner"`
	Size       int       `json:"size"`
	Source     string    `json:"source,omitempty"`
	References []string  `json:"references,omitempty"`
}

// Package returns the dotted package name of the class, or DefaultPackage.
func (c ClassInfo) Package() string {
	return PackageOf(c.Name)
}

// DefaultPackage names the unnamed package.
const DefaultPackage = "(default)"

// PackageOf returns the package part of a dotted class name.
func PackageOf(className string) string {
	for i := len(className) - 1; i >= 0; i-- {
		if className[i] == '.' {
			return className[:i]
		}
	}
	return DefaultPackage
}

// OuterClass returns the outermost enclosing class of a dotted class name,
// or the name itself for top-level classes.
func OuterClass(className string) string {
	pkgEnd := -1
	for i := len(className) - 1; i >= 0; i-- {
		if className[i] == '.' {
			pkgEnd = i
			break
		}
	}
	for i := pkgEnd + 1; i < len(className); i++ {
		// A leading '$' is part of the simple name, not a nesting separator.
		if className[i] == '$' && i > pkgEnd+1 {
			return className[:i]
		}
	}
	return className
}
