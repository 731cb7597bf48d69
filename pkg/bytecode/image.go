package bytecode

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/mk/pkg/object"
)

// ImageVersion is the current image format version.
// Increment when making incompatible changes to the format.
const ImageVersion uint16 = 1

// ImageMagic identifies an mk bytecode image: "MKBC" (mk ByteCode).
const ImageMagic = "MKBC"

var (
	ErrImageMagic   = errors.New("not an mk bytecode image")
	ErrImageVersion = errors.New("unsupported image version")
)

// ConstantKind tags the variant of a serialized constant.
type ConstantKind uint8

const (
	ConstInt ConstantKind = iota + 1
	ConstBool
	ConstString
	ConstNull
)

// Constant is the serialized form of a constant-pool entry.
type Constant struct {
	Kind ConstantKind `cbor:"kind"`
	Int  int64        `cbor:"int,omitempty"`
	Bool bool         `cbor:"bool,omitempty"`
	Str  string       `cbor:"str,omitempty"`
}

// Image is a compiled program stored on disk. Globals lists the symbol name
// of every slot so a program can be disassembled or inspected later.
type Image struct {
	Magic        string     `cbor:"magic"`
	Version      uint16     `cbor:"version"`
	BuildID      string     `cbor:"build_id"`
	Source       string     `cbor:"source,omitempty"`
	Instructions []byte     `cbor:"instructions"`
	Constants    []Constant `cbor:"constants"`
	Globals      []string   `cbor:"globals,omitempty"`
}

// cborEncMode uses canonical mode so the same program always encodes to
// the same bytes (apart from the build ID).
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// NewImage builds an image for bc with a fresh build ID. symbols may be nil.
func NewImage(bc *Bytecode, symbols *SymbolTable, source string) (*Image, error) {
	img := &Image{
		Magic:        ImageMagic,
		Version:      ImageVersion,
		BuildID:      uuid.New().String(),
		Source:       source,
		Instructions: append([]byte(nil), bc.Instructions...),
		Constants:    make([]Constant, len(bc.Constants)),
	}
	for i, c := range bc.Constants {
		sc, err := encodeConstant(c)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		img.Constants[i] = sc
	}
	if symbols != nil {
		for _, sym := range symbols.Symbols() {
			img.Globals = append(img.Globals, sym.Name)
		}
	}
	return img, nil
}

// EncodeImage serializes bc to CBOR.
func EncodeImage(bc *Bytecode, symbols *SymbolTable, source string) ([]byte, error) {
	img, err := NewImage(bc, symbols, source)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(img)
}

// DecodeImage deserializes and validates an image, including every
// instruction in its stream.
func DecodeImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal image: %w", err)
	}
	if img.Magic != ImageMagic {
		return nil, ErrImageMagic
	}
	if img.Version == 0 || img.Version > ImageVersion {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrImageVersion, img.Version, ImageVersion)
	}
	if _, err := uuid.Parse(img.BuildID); err != nil {
		return nil, fmt.Errorf("bytecode: invalid build id %q: %w", img.BuildID, err)
	}
	for offset := 0; offset < len(img.Instructions); {
		_, _, n, err := Decode(img.Instructions, offset)
		if err != nil {
			return nil, fmt.Errorf("bytecode: corrupt instruction stream: %w", err)
		}
		offset += n
	}
	return &img, nil
}

// Bytecode converts the image back into an executable program.
func (img *Image) Bytecode() (*Bytecode, error) {
	consts := make([]object.Object, len(img.Constants))
	for i, c := range img.Constants {
		obj, err := decodeConstant(c)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		consts[i] = obj
	}
	return &Bytecode{
		Instructions: append(Instructions(nil), img.Instructions...),
		Constants:    consts,
	}, nil
}

// SymbolTable rebuilds the symbol table recorded in the image.
func (img *Image) SymbolTable() *SymbolTable {
	st := NewSymbolTable()
	for _, name := range img.Globals {
		st.Define(name)
	}
	return st
}

// WriteImageFile compiles bc into an image and writes it to path.
func WriteImageFile(path string, bc *Bytecode, symbols *SymbolTable, source string) error {
	data, err := EncodeImage(bc, symbols, source)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// ReadImageFile reads and validates the image at path.
func ReadImageFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func encodeConstant(o object.Object) (Constant, error) {
	switch v := o.(type) {
	case *object.Integer:
		return Constant{Kind: ConstInt, Int: v.Value}, nil
	case *object.Boolean:
		return Constant{Kind: ConstBool, Bool: v.Value}, nil
	case *object.String:
		return Constant{Kind: ConstString, Str: v.Value}, nil
	case *object.Null:
		return Constant{Kind: ConstNull}, nil
	default:
		return Constant{}, fmt.Errorf("cannot serialize %s constant", o.Type())
	}
}

func decodeConstant(c Constant) (object.Object, error) {
	switch c.Kind {
	case ConstInt:
		return &object.Integer{Value: c.Int}, nil
	case ConstBool:
		return object.NativeBool(c.Bool), nil
	case ConstString:
		return &object.String{Value: c.Str}, nil
	case ConstNull:
		return object.NullValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant kind %d", c.Kind)
	}
}
