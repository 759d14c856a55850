// Package classfile extracts class-level dependencies from compiled JVM class files.
//
// Only the constant pool and member descriptors are inspected. Every class
// named by a CONSTANT_Class entry or mentioned in a field, method or
// NameAndType descriptor counts as a reference. Code attributes are skipped.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ajitpratap0/classcycle/internal/models"
)

var (
	// ErrNotClassFile is returned when the input does not start with the class file magic.
	ErrNotClassFile = errors.New("not a class file")

	// ErrTruncated is returned when the input ends before the class file structure does.
	ErrTruncated = errors.New("truncated class file")

	// ErrModule is returned for module-info descriptors, which declare no class.
	ErrModule = errors.New("module descriptor")
)

// FormatError reports a structural problem at a byte offset.
type FormatError struct {
	Offset int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("classfile: %s at offset %d", e.Reason, e.Offset)
}

func (e *FormatError) Unwrap() error { return e.Err }

const magic = 0xCAFEBABE

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// Access flags.
const (
	accInterface = 0x0200
	accAbstract  = 0x0400
	accModule    = 0x8000
)

type cpEntry struct {
	tag  uint8
	a, b uint16
	text string
}

// Parse reads a whole class file from r.
func Parse(r io.Reader) (*models.ClassInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("classfile: reading: %w", err)
	}
	return ParseBytes(b)
}

// ParseBytes parses a class file held in memory.
func ParseBytes(b []byte) (*models.ClassInfo, error) {
	r := &reader{b: b}

	m, err := r.u4()
	if err != nil || m != magic {
		return nil, &FormatError{Offset: 0, Reason: "bad magic number", Err: ErrNotClassFile}
	}
	// minor_version, major_version
	if err := r.skip(4); err != nil {
		return nil, err
	}

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	access, err := r.u2()
	if err != nil {
		return nil, err
	}
	if access&accModule != 0 {
		return nil, ErrModule
	}
	thisOff := r.off
	thisIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	// super_class
	if err := r.skip(2); err != nil {
		return nil, err
	}
	ifaceCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	// Interfaces point at CONSTANT_Class entries, which are collected from the pool.
	if err := r.skip(2 * int(ifaceCount)); err != nil {
		return nil, err
	}

	var descriptors []uint16
	for range 2 { // fields, then methods
		descs, memberErr := readMembers(r)
		if memberErr != nil {
			return nil, memberErr
		}
		descriptors = append(descriptors, descs...)
	}
	if err := skipAttributes(r); err != nil {
		return nil, err
	}

	name, err := pool.className(thisIdx)
	if err != nil {
		return nil, &FormatError{Offset: thisOff, Reason: "invalid this_class", Err: err}
	}

	refs := make(refSet)
	for i := range pool {
		e := &pool[i]
		switch e.tag {
		case tagClass:
			n, utfErr := pool.utf8(e.a)
			if utfErr != nil {
				return nil, utfErr
			}
			refs.addClassName(n)
		case tagNameAndType:
			d, utfErr := pool.utf8(e.b)
			if utfErr != nil {
				return nil, utfErr
			}
			refs.addDescriptor(d)
		case tagMethodType:
			d, utfErr := pool.utf8(e.a)
			if utfErr != nil {
				return nil, utfErr
			}
			refs.addDescriptor(d)
		}
	}
	for _, idx := range descriptors {
		d, utfErr := pool.utf8(idx)
		if utfErr != nil {
			return nil, utfErr
		}
		refs.addDescriptor(d)
	}

	dotted := toDotted(name)
	delete(refs, dotted)

	return &models.ClassInfo{
		Name:       dotted,
		Type:       classType(access),
		Inner:      models.OuterClass(dotted) != dotted,
		Size:       len(b),
		References: refs.sorted(),
	}, nil
}

func classType(access uint16) models.ClassType {
	switch {
	case access&accInterface != 0:
		return models.ClassTypeInterface
	case access&accAbstract != 0:
		return models.ClassTypeAbstractClass
	default:
		return models.ClassTypeClass
	}
}

type constantPool []cpEntry

func readConstantPool(r *reader) (constantPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	pool := make(constantPool, count)
	for i := 1; i < int(count); i++ {
		off := r.off
		tag, err := r.u1()
		if err != nil {
			return nil, err
		}
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n, lenErr := r.u2()
			if lenErr != nil {
				return nil, lenErr
			}
			raw, bytesErr := r.bytes(int(n))
			if bytesErr != nil {
				return nil, bytesErr
			}
			// Modified UTF-8 only differs for NUL and supplementary characters,
			// neither of which appear in binary class names.
			e.text = string(raw)
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			if e.a, err = r.u2(); err != nil {
				return nil, err
			}
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			if e.a, err = r.u2(); err != nil {
				return nil, err
			}
			if e.b, err = r.u2(); err != nil {
				return nil, err
			}
		case tagInteger, tagFloat:
			if err := r.skip(4); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if err := r.skip(8); err != nil {
				return nil, err
			}
		case tagMethodHandle:
			if err := r.skip(3); err != nil {
				return nil, err
			}
		default:
			return nil, &FormatError{Offset: off, Reason: fmt.Sprintf("unknown constant pool tag %d", tag)}
		}
		pool[i] = e
		if tag == tagLong || tag == tagDouble {
			// 8-byte constants take two slots; the second is unusable.
			i++
		}
	}
	return pool, nil
}

func (p constantPool) entry(idx uint16, tag uint8) (*cpEntry, error) {
	if idx == 0 || int(idx) >= len(p) || p[idx].tag != tag {
		return nil, &FormatError{Reason: fmt.Sprintf("constant pool index %d is not of tag %d", idx, tag)}
	}
	return &p[idx], nil
}

func (p constantPool) utf8(idx uint16) (string, error) {
	e, err := p.entry(idx, tagUtf8)
	if err != nil {
		return "", err
	}
	return e.text, nil
}

func (p constantPool) className(idx uint16) (string, error) {
	e, err := p.entry(idx, tagClass)
	if err != nil {
		return "", err
	}
	return p.utf8(e.a)
}

// readMembers reads a fields or methods table and returns descriptor indexes.
func readMembers(r *reader) ([]uint16, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	descs := make([]uint16, 0, count)
	for range count {
		// access_flags, name_index
		if err := r.skip(4); err != nil {
			return nil, err
		}
		d, err := r.u2()
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
		if err := skipAttributes(r); err != nil {
			return nil, err
		}
	}
	return descs, nil
}

func skipAttributes(r *reader) error {
	count, err := r.u2()
	if err != nil {
		return err
	}
	for range count {
		// attribute_name_index
		if err := r.skip(2); err != nil {
			return err
		}
		n, err := r.u4()
		if err != nil {
			return err
		}
		if err := r.skip(int(n)); err != nil {
			return err
		}
	}
	return nil
}

type refSet map[string]struct{}

// addClassName records a CONSTANT_Class name, which is either an internal
// binary name or an array descriptor.
func (s refSet) addClassName(name string) {
	if strings.HasPrefix(name, "[") {
		s.addDescriptor(name)
		return
	}
	if name != "" {
		s[toDotted(name)] = struct{}{}
	}
}

// addDescriptor records every object type mentioned in a field or method descriptor.
func (s refSet) addDescriptor(desc string) {
	for i := 0; i < len(desc); i++ {
		if desc[i] != 'L' {
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			return
		}
		if name := desc[i+1 : i+end]; name != "" {
			s[toDotted(name)] = struct{}{}
		}
		i += end
	}
}

func (s refSet) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toDotted(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) truncated() error {
	return &FormatError{Offset: r.off, Reason: "unexpected end of data", Err: ErrTruncated}
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || len(r.b)-r.off < n {
		return nil, r.truncated()
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) skip(n int) error {
	_, err := r.bytes(n)
	return err
}

func (r *reader) u1() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u2() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u4() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
