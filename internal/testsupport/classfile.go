// Package testsupport builds class files, archives and directory trees for tests.
package testsupport

import (
	"archive/zip"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ClassFile assembles a minimal but structurally valid class file.
type ClassFile struct {
	name    string
	access  uint16
	pool    [][]byte
	next    uint16
	utf8s   map[string]uint16
	classes map[string]uint16
	this    uint16
	super   uint16
	ifaces  []uint16
	fields  [][2]uint16
	methods [][2]uint16
	trailer []byte
}

// NewClassFile starts a public class with the given dotted name extending java.lang.Object.
func NewClassFile(name string) *ClassFile {
	c := &ClassFile{
		name:    name,
		access:  0x0021, // ACC_PUBLIC | ACC_SUPER
		next:    1,
		utf8s:   make(map[string]uint16),
		classes: make(map[string]uint16),
	}
	c.this = c.class(name)
	c.super = c.class("java.lang.Object")
	return c
}

// Name returns the dotted class name.
func (c *ClassFile) Name() string { return c.name }

// Super sets the superclass.
func (c *ClassFile) Super(name string) *ClassFile {
	c.super = c.class(name)
	return c
}

// Interface marks the class file as an interface.
func (c *ClassFile) Interface() *ClassFile {
	c.access = 0x0601 // ACC_PUBLIC | ACC_INTERFACE | ACC_ABSTRACT
	return c
}

// Abstract marks the class as abstract.
func (c *ClassFile) Abstract() *ClassFile {
	c.access |= 0x0400
	return c
}

// Module turns the class file into a module-info descriptor.
func (c *ClassFile) Module() *ClassFile {
	c.access = 0x8000
	return c
}

// Implements adds an interface.
func (c *ClassFile) Implements(name string) *ClassFile {
	c.ifaces = append(c.ifaces, c.class(name))
	return c
}

// Field declares a field with a JVM descriptor such as "Ljava/util/List;".
func (c *ClassFile) Field(name, desc string) *ClassFile {
	c.fields = append(c.fields, [2]uint16{c.utf8(name), c.utf8(desc)})
	return c
}

// Method declares a method with a JVM descriptor such as "(I)Ljava/lang/String;".
func (c *ClassFile) Method(name, desc string) *ClassFile {
	c.methods = append(c.methods, [2]uint16{c.utf8(name), c.utf8(desc)})
	return c
}

// Calls adds a Methodref to owner.name:desc, as produced by an invocation.
func (c *ClassFile) Calls(owner, name, desc string) *ClassFile {
	cls := c.class(owner)
	nat := c.add(u1u2u2(12, c.utf8(name), c.utf8(desc)))
	c.add(u1u2u2(10, cls, nat))
	return c
}

// Uses adds a bare CONSTANT_Class entry, as produced by instanceof or a class literal.
func (c *ClassFile) Uses(name string) *ClassFile {
	c.class(name)
	return c
}

// Constants adds a string, an int, a long and a double constant.
func (c *ClassFile) Constants(s string, i int32, l int64, d float64) *ClassFile {
	c.add(u1u2(8, c.utf8(s)))

	ib := make([]byte, 5)
	ib[0] = 3
	binary.BigEndian.PutUint32(ib[1:], uint32(i))
	c.add(ib)

	lb := make([]byte, 9)
	lb[0] = 5
	binary.BigEndian.PutUint64(lb[1:], uint64(l))
	c.add(lb)
	c.next++

	db := make([]byte, 9)
	db[0] = 6
	binary.BigEndian.PutUint64(db[1:], math.Float64bits(d))
	c.add(db)
	c.next++
	return c
}

// Attribute appends an opaque class attribute.
func (c *ClassFile) Attribute(name string, payload []byte) *ClassFile {
	b := u2(nil, c.utf8(name))
	b = binary.BigEndian.AppendUint32(b, uint32(len(payload)))
	c.trailer = append(c.trailer, b...)
	c.trailer = append(c.trailer, payload...)
	return c
}

// Bytes serialises the class file.
func (c *ClassFile) Bytes() []byte {
	out := binary.BigEndian.AppendUint32(nil, 0xCAFEBABE)
	out = u2(out, 0)  // minor
	out = u2(out, 61) // major, Java 17
	out = u2(out, c.next)
	for _, e := range c.pool {
		out = append(out, e...)
	}
	out = u2(out, c.access)
	out = u2(out, c.this)
	out = u2(out, c.super)
	out = u2(out, uint16(len(c.ifaces)))
	for _, i := range c.ifaces {
		out = u2(out, i)
	}
	for _, members := range [][][2]uint16{c.fields, c.methods} {
		out = u2(out, uint16(len(members)))
		for _, m := range members {
			out = u2(out, 0x0001)
			out = u2(out, m[0])
			out = u2(out, m[1])
			out = u2(out, 0) // attributes
		}
	}
	out = u2(out, c.attributeCount())
	out = append(out, c.trailer...)
	return out
}

func (c *ClassFile) attributeCount() uint16 {
	var n uint16
	for off := 0; off < len(c.trailer); n++ {
		l := binary.BigEndian.Uint32(c.trailer[off+2:])
		off += 6 + int(l)
	}
	return n
}

// Path returns the relative path of the class file inside a class directory.
func (c *ClassFile) Path() string {
	return strings.ReplaceAll(c.name, ".", "/") + ".class"
}

func (c *ClassFile) add(entry []byte) uint16 {
	idx := c.next
	c.pool = append(c.pool, entry)
	c.next++
	return idx
}

func (c *ClassFile) utf8(s string) uint16 {
	if idx, ok := c.utf8s[s]; ok {
		return idx
	}
	b := u2([]byte{1}, uint16(len(s)))
	b = append(b, s...)
	idx := c.add(b)
	c.utf8s[s] = idx
	return idx
}

func (c *ClassFile) class(dotted string) uint16 {
	if idx, ok := c.classes[dotted]; ok {
		return idx
	}
	internal := strings.ReplaceAll(dotted, ".", "/")
	if strings.HasPrefix(dotted, "[") {
		internal = dotted
	}
	idx := c.add(u1u2(7, c.utf8(internal)))
	c.classes[dotted] = idx
	return idx
}

func u2(b []byte, v uint16) []byte { return binary.BigEndian.AppendUint16(b, v) }

func u1u2(tag byte, a uint16) []byte { return u2([]byte{tag}, a) }

func u1u2u2(tag byte, a, b uint16) []byte { return u2(u1u2(tag, a), b) }

// WriteClassDir writes the class files under dir using their package layout.
func WriteClassDir(t testing.TB, dir string, classes ...*ClassFile) {
	t.Helper()
	for _, c := range classes {
		p := filepath.Join(dir, filepath.FromSlash(c.Path()))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("creating %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, c.Bytes(), 0o644); err != nil {
			t.Fatalf("writing %s: %v", p, err)
		}
	}
}

// WriteJar writes the class files into a zip archive at path.
func WriteJar(t testing.TB, path string, classes ...*ClassFile) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	manifest, err := zw.Create("META-INF/MANIFEST.MF")
	if err != nil {
		t.Fatalf("adding manifest: %v", err)
	}
	_, _ = manifest.Write([]byte("Manifest-Version: 1.0\n"))
	for _, c := range classes {
		w, createErr := zw.Create(c.Path())
		if createErr != nil {
			t.Fatalf("adding %s: %v", c.Path(), createErr)
		}
		if _, writeErr := w.Write(c.Bytes()); writeErr != nil {
			t.Fatalf("writing %s: %v", c.Path(), writeErr)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing jar: %v", err)
	}
}
