package vm

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Prototype image: CBOR snapshot of compiled code
// ---------------------------------------------------------------------------

// A prototype image is the serialized form of one compiled prototype tree.
// Hosts snapshot compiler output with WriteImage and the CLI runs the
// snapshot with ReadImage; nothing in the engine requires bytecode to ever
// touch disk. Strings re-intern through the loading State's pool, so loaded
// constants keep the interning identity guarantee.

const (
	imageMagic   = "SVMI"
	imageVersion = 1
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wire forms; only nil/bool/number/string constants can appear in a
// prototype's constant pool.

type imageConst struct {
	Type int     `cbor:"t"`
	Bool bool    `cbor:"b,omitempty"`
	Num  float64 `cbor:"n,omitempty"`
	Str  string  `cbor:"s,omitempty"`
}

type imageUpvalue struct {
	Name        string `cbor:"name"`
	ParentLocal bool   `cbor:"local"`
	Index       int    `cbor:"index"`
}

type imageLocalVar struct {
	Name         string `cbor:"name"`
	RegisterSlot int    `cbor:"slot"`
	BeginPC      int    `cbor:"begin"`
	EndPC        int    `cbor:"end"`
}

type imageProto struct {
	OpCodes       []uint32        `cbor:"code"`
	Lines         []int           `cbor:"lines"`
	Consts        []imageConst    `cbor:"consts"`
	Children      []imageProto    `cbor:"children"`
	Upvalues      []imageUpvalue  `cbor:"upvalues"`
	LocalVars     []imageLocalVar `cbor:"localvars"`
	FixedArgCount int             `cbor:"args"`
	HasVararg     bool            `cbor:"vararg"`
	Module        string          `cbor:"module"`
	Line          int             `cbor:"line"`
}

type imageFile struct {
	Magic   string     `cbor:"magic"`
	Version int        `cbor:"version"`
	Proto   imageProto `cbor:"proto"`
}

// WriteImage serializes a prototype tree to w.
func WriteImage(w io.Writer, f *Function) error {
	file := imageFile{
		Magic:   imageMagic,
		Version: imageVersion,
		Proto:   encodeProto(f),
	}
	data, err := cborEncMode.Marshal(&file)
	if err != nil {
		return fmt.Errorf("image: marshal: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("image: write: %w", err)
	}
	return nil
}

// ReadImage deserializes a prototype tree from r, interning strings and
// registering prototypes with the State's collector.
func ReadImage(r io.Reader, s *State) (*Function, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("image: read: %w", err)
	}
	var file imageFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if file.Magic != imageMagic {
		return nil, fmt.Errorf("image: bad magic %q", file.Magic)
	}
	if file.Version != imageVersion {
		return nil, fmt.Errorf("image: unsupported version %d", file.Version)
	}
	return decodeProto(&file.Proto, s)
}

func encodeProto(f *Function) imageProto {
	p := imageProto{
		FixedArgCount: f.FixedArgCount(),
		HasVararg:     f.HasVararg(),
		Line:          f.Line(),
	}
	if f.Module() != nil {
		p.Module = f.Module().Str()
	}

	for _, i := range f.OpCodes() {
		p.OpCodes = append(p.OpCodes, uint32(i))
	}
	p.Lines = append(p.Lines, f.lines...)

	for i := 0; i < f.ConstCount(); i++ {
		c := f.ConstValue(i)
		ic := imageConst{Type: int(c.Type)}
		switch c.Type {
		case TypeBool:
			ic.Bool = c.Bool
		case TypeNumber:
			ic.Num = c.Num
		case TypeString:
			ic.Str = c.Str.Str()
		}
		p.Consts = append(p.Consts, ic)
	}

	for i := 0; i < f.ChildFunctionCount(); i++ {
		p.Children = append(p.Children, encodeProto(f.ChildFunction(i)))
	}

	for i := 0; i < f.UpvalueCount(); i++ {
		info := f.UpvalueInfo(i)
		iu := imageUpvalue{ParentLocal: info.ParentLocal, Index: info.Index}
		if info.Name != nil {
			iu.Name = info.Name.Str()
		}
		p.Upvalues = append(p.Upvalues, iu)
	}

	for _, lv := range f.localVars {
		ilv := imageLocalVar{
			RegisterSlot: lv.RegisterSlot,
			BeginPC:      lv.BeginPC,
			EndPC:        lv.EndPC,
		}
		if lv.Name != nil {
			ilv.Name = lv.Name.Str()
		}
		p.LocalVars = append(p.LocalVars, ilv)
	}
	return p
}

func decodeProto(p *imageProto, s *State) (*Function, error) {
	if len(p.Lines) != len(p.OpCodes) {
		return nil, fmt.Errorf("image: line table size %d does not match code size %d",
			len(p.Lines), len(p.OpCodes))
	}

	f := s.NewFunction()
	for i, w := range p.OpCodes {
		f.AddInstruction(Instruction(w), p.Lines[i])
	}

	for _, ic := range p.Consts {
		switch ValueType(ic.Type) {
		case TypeNil:
			f.AddConstant(NilValue())
		case TypeBool:
			f.AddConstant(BoolValue(ic.Bool))
		case TypeNumber:
			f.AddConstant(NumberValue(ic.Num))
		case TypeString:
			f.AddConstant(StringValue(s.GetString(ic.Str)))
		default:
			return nil, fmt.Errorf("image: unsupported constant type %d", ic.Type)
		}
	}

	for i := range p.Children {
		child, err := decodeProto(&p.Children[i], s)
		if err != nil {
			return nil, err
		}
		f.AddChildFunction(child)
	}

	for _, iu := range p.Upvalues {
		f.AddUpvalue(s.GetString(iu.Name), iu.ParentLocal, iu.Index)
	}
	for _, ilv := range p.LocalVars {
		f.AddLocalVar(s.GetString(ilv.Name), ilv.RegisterSlot, ilv.BeginPC, ilv.EndPC)
	}

	f.SetFixedArgCount(p.FixedArgCount)
	if p.HasVararg {
		f.SetHasVararg()
	}
	if p.Module != "" {
		f.SetModule(s.GetString(p.Module), p.Line)
	}
	return f, nil
}
