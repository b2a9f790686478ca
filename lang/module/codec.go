package module

import (
	"bytes"
	"fmt"
	"io"
)

// decoder is a bounds-checked cursor over a byte slice, used to parse chunk
// payloads. All multi-byte integers are big-endian (§4.1).
type decoder struct {
	b   []byte
	pos int
}

func (d *decoder) remaining() int { return len(d.b) - d.pos }

func (d *decoder) need(n int) error {
	if n < 0 || d.remaining() < n {
		return fmt.Errorf("unexpected end of chunk (need %d bytes, have %d)", n, d.remaining())
	}
	return nil
}

func (d *decoder) u8() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.b[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) i8() (int8, error) {
	v, err := d.u8()
	return int8(v), err
}

func (d *decoder) u16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := uint16(d.b[d.pos])<<8 | uint16(d.b[d.pos+1])
	d.pos += 2
	return v, nil
}

func (d *decoder) i16() (int16, error) {
	v, err := d.u16()
	return int16(v), err
}

// i24 decodes a 3-byte big-endian two's-complement signed integer.
func (d *decoder) i24() (int32, error) {
	if err := d.need(3); err != nil {
		return 0, err
	}
	v := int32(d.b[d.pos])<<16 | int32(d.b[d.pos+1])<<8 | int32(d.b[d.pos+2])
	d.pos += 3
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := uint32(d.b[d.pos])<<24 | uint32(d.b[d.pos+1])<<16 | uint32(d.b[d.pos+2])<<8 | uint32(d.b[d.pos+3])
	d.pos += 4
	return v, nil
}

func (d *decoder) i32() (int32, error) {
	v, err := d.u32()
	return int32(v), err
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := d.b[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

// cstring reads a zero-terminated byte string.
func (d *decoder) cstring() (string, error) {
	start := d.pos
	for d.pos < len(d.b) {
		if d.b[d.pos] == 0 {
			s := string(d.b[start:d.pos])
			d.pos++
			return s, nil
		}
		d.pos++
	}
	return "", fmt.Errorf("unterminated string")
}

// chunk is a parsed (id, payload) pair, already stripped of its size and
// padding byte.
type chunk struct {
	id      string
	payload []byte
}

// inner chunk ids: every chunk id, including the FORM sub-type, is exactly
// 4 ASCII bytes; the 3-letter section names are padded with a trailing
// space (§4.1).
const (
	idMOD = "MOD "
	idSTR = "STR "
	idFUN = "FUN "
	idWRD = "WRD "
	idGRM = "GRM "
	idCMD = "CMD "
)

// readChunk reads a single IFF-style chunk from d: 4-byte id, big-endian
// u32 size, payload, and one pad byte iff size is odd (§4.1).
func readChunk(r *decoder) (chunk, error) {
	idb, err := r.bytes(4)
	if err != nil {
		return chunk{}, fmt.Errorf("reading chunk id: %w", err)
	}
	size, err := r.u32()
	if err != nil {
		return chunk{}, fmt.Errorf("reading chunk size: %w", err)
	}
	payload, err := r.bytes(int(size))
	if err != nil {
		return chunk{}, fmt.Errorf("reading chunk %q payload: %w", idb, err)
	}
	if size%2 == 1 {
		if _, err := r.bytes(1); err != nil {
			return chunk{}, fmt.Errorf("reading chunk %q padding: %w", idb, err)
		}
	}
	return chunk{id: string(idb), payload: payload}, nil
}

// writeChunk appends a complete IFF-style chunk (id, size, payload, pad) to
// buf.
func writeChunk(buf *bytes.Buffer, id string, payload []byte) {
	buf.WriteString(id)
	var sz [4]byte
	putU32(sz[:], uint32(len(payload)))
	buf.Write(sz[:])
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func putI24(b []byte, v int32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// Read parses a chunked binary module from r (§4.1, §4.4 format).
func Read(r io.Reader) (*Module, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("module: reading input: %w", err)
	}

	d := &decoder{b: raw}
	form, err := readChunk(d)
	if err != nil {
		return nil, &LoadError{Reason: err.Error()}
	}
	if form.id != "FORM" {
		return nil, loadErrorf("expected top-level FORM chunk, got %q", form.id)
	}

	fd := &decoder{b: form.payload}
	formType, err := fd.bytes(4)
	if err != nil {
		return nil, loadErrorf("reading FORM sub-type: %s", err)
	}
	if string(formType) != "ALI " {
		return nil, loadErrorf("unexpected FORM sub-type %q, want \"ALI \"", formType)
	}

	order := []string{idMOD, idSTR, idFUN, idWRD, idGRM, idCMD}
	chunks := make(map[string][]byte, len(order))
	for _, want := range order {
		c, err := readChunk(fd)
		if err != nil {
			return nil, &LoadError{Reason: fmt.Sprintf("reading %s chunk: %s", want, err)}
		}
		if c.id != want {
			return nil, loadErrorf("expected %s chunk, got %q (chunks must appear in fixed order)", want, c.id)
		}
		chunks[want] = c.payload
	}

	m := &Module{}
	if err := readMOD(chunks[idMOD], m); err != nil {
		return nil, &LoadError{Reason: "MOD: " + err.Error()}
	}
	if m.Strings, err = readStringTable(chunks[idSTR]); err != nil {
		return nil, &LoadError{Reason: "STR: " + err.Error()}
	}
	if m.Functions, err = readFunctionTable(chunks[idFUN]); err != nil {
		return nil, &LoadError{Reason: "FUN: " + err.Error()}
	}
	if m.Words, err = readWordTable(chunks[idWRD]); err != nil {
		return nil, &LoadError{Reason: "WRD: " + err.Error()}
	}
	if m.Grammar, err = readGrammar(chunks[idGRM]); err != nil {
		return nil, &LoadError{Reason: "GRM: " + err.Error()}
	}
	if m.Commands, err = readCommandTable(chunks[idCMD]); err != nil {
		return nil, &LoadError{Reason: "CMD: " + err.Error()}
	}
	m.buildWordIndex()

	return m, nil
}

func readMOD(payload []byte, m *Module) error {
	if len(payload) != 20 {
		return fmt.Errorf("want 20-byte body, got %d", len(payload))
	}
	d := &decoder{b: payload}
	version, _ := d.u16()
	if version>>8 != Version>>8 {
		return fmt.Errorf("unsupported module version %d.%d (want major version %d)", version>>8, version&0xff, Version>>8)
	}
	if _, err := d.u16(); err != nil { // reserved
		return err
	}
	var err error
	if m.NumGlobals, err = d.i32(); err != nil {
		return err
	}
	if m.NumEntities, err = d.i32(); err != nil {
		return err
	}
	if m.NumProperties, err = d.i32(); err != nil {
		return err
	}
	if m.InitFunc, err = d.i32(); err != nil {
		return err
	}
	return nil
}

func readStringList(payload []byte) ([]string, error) {
	d := &decoder{b: payload}
	count, err := d.i32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative count %d", count)
	}
	out := make([]string, count)
	for i := range out {
		s, err := d.cstring()
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func readStringTable(payload []byte) ([]string, error) {
	return readStringList(payload)
}

func readWordTable(payload []byte) ([]string, error) {
	words, err := readStringList(payload)
	if err != nil {
		return nil, err
	}
	for i, w := range words {
		if w == "" {
			return nil, fmt.Errorf("word %d is empty", i)
		}
	}
	return words, nil
}

func readFunctionTable(payload []byte) ([]Function, error) {
	d := &decoder{b: payload}
	count, err := d.i32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative count %d", count)
	}

	type header struct{ nret, nparam int }
	headers := make([]header, count)
	for i := range headers {
		if _, err := d.u16(); err != nil { // reserved
			return nil, err
		}
		nret, err := d.u8()
		if err != nil {
			return nil, err
		}
		nparam, err := d.u8()
		if err != nil {
			return nil, err
		}
		if nret > 1 {
			return nil, fmt.Errorf("function %d: nret must be 0 or 1, got %d", i, nret)
		}
		headers[i] = header{nret: int(nret), nparam: int(nparam)}
	}

	// the remainder is a flat instruction stream; functions are discovered
	// by scanning (0,0) terminators in order, from the start (§4.1).
	if d.remaining()%4 != 0 {
		return nil, fmt.Errorf("instruction stream size %d is not a multiple of 4", d.remaining())
	}
	ninstr := d.remaining() / 4
	stream := make([]Instruction, 0, ninstr)
	for i := 0; i < ninstr; i++ {
		op, err := d.u8()
		if err != nil {
			return nil, err
		}
		arg, err := d.i24()
		if err != nil {
			return nil, err
		}
		stream = append(stream, Instruction{Op: Opcode(op), Arg: arg})
	}

	functions := make([]Function, count)
	pos := 0
	for i, h := range headers {
		start := pos
		for {
			if pos >= len(stream) {
				return nil, fmt.Errorf("function %d: missing terminator instruction", i)
			}
			if stream[pos].Op == 0 && stream[pos].Arg == 0 {
				break
			}
			pos++
		}
		functions[i] = Function{NParam: h.nparam, NRet: h.nret, Code: stream[start:pos]}
		pos++ // skip the terminator
	}
	if pos != len(stream) {
		return nil, fmt.Errorf("instruction stream has %d trailing instructions after the last function", len(stream)-pos)
	}
	return functions, nil
}

func readSymbolRef(d *decoder) (SymbolRef, error) {
	v, err := d.i32()
	return SymbolRef(v), err
}

func readGrammar(payload []byte) (Grammar, error) {
	d := &decoder{b: payload}
	nnonterm, err := d.i32()
	if err != nil {
		return nil, err
	}
	if _, err := d.i32(); err != nil { // tot_rules, informational only
		return nil, err
	}
	if _, err := d.i32(); err != nil { // tot_symrefs, informational only
		return nil, err
	}
	if nnonterm < 0 {
		return nil, fmt.Errorf("negative non-terminal count %d", nnonterm)
	}

	g := make(Grammar, nnonterm)
	for nt := int32(0); nt < nnonterm; nt++ {
		nrule, err := d.i32()
		if err != nil {
			return nil, fmt.Errorf("non-terminal %d: %w", nt, err)
		}
		if nrule < 0 {
			return nil, fmt.Errorf("non-terminal %d: negative rule count %d", nt, nrule)
		}
		rs := make(RuleSet, nrule)
		for ri := int32(0); ri < nrule; ri++ {
			nref, err := d.i32()
			if err != nil {
				return nil, fmt.Errorf("non-terminal %d rule %d: %w", nt, ri, err)
			}
			if nref < 0 {
				return nil, fmt.Errorf("non-terminal %d rule %d: negative ref count %d", nt, ri, nref)
			}
			rule := make(Rule, nref)
			for si := int32(0); si < nref; si++ {
				ref, err := readSymbolRef(d)
				if err != nil {
					return nil, fmt.Errorf("non-terminal %d rule %d symbol %d: %w", nt, ri, si, err)
				}
				if ref.IsNonTerminal() && ref.NonTerminalIndex() >= nt {
					return nil, fmt.Errorf("non-terminal %d rule %d: forward/self reference to non-terminal %d", nt, ri, ref.NonTerminalIndex())
				}
				rule[si] = ref
			}
			rs[ri] = rule
		}
		g[nt] = rs
	}
	return g, nil
}

func readCommandTable(payload []byte) ([]Command, error) {
	d := &decoder{b: payload}
	nsets, err := d.i32()
	if err != nil {
		return nil, err
	}
	if nsets < 1 {
		return nil, fmt.Errorf("command_sets must be >= 1, got %d", nsets)
	}

	ncommand, err := d.i32()
	if err != nil {
		return nil, fmt.Errorf("first command set: %w", err)
	}
	if ncommand < 0 {
		return nil, fmt.Errorf("negative command count %d", ncommand)
	}
	cmds := make([]Command, ncommand)
	for i := range cmds {
		sym, err := readSymbolRef(d)
		if err != nil {
			return nil, fmt.Errorf("command %d symbol: %w", i, err)
		}
		guard, err := d.i32()
		if err != nil {
			return nil, fmt.Errorf("command %d guard: %w", i, err)
		}
		fn, err := d.i32()
		if err != nil {
			return nil, fmt.Errorf("command %d function: %w", i, err)
		}
		cmds[i] = Command{Symbol: sym, Guard: guard, Function: fn}
	}

	// subsequent command sets are parsed only to validate the chunk's
	// internal consistency; they are currently ignored (§4.1).
	for s := int32(1); s < nsets; s++ {
		n, err := d.i32()
		if err != nil {
			return nil, fmt.Errorf("command set %d: %w", s, err)
		}
		for i := int32(0); i < n; i++ {
			if _, err := readSymbolRef(d); err != nil {
				return nil, err
			}
			if _, err := d.i32(); err != nil {
				return nil, err
			}
			if _, err := d.i32(); err != nil {
				return nil, err
			}
		}
	}

	return cmds, nil
}

// Write serializes m to w in the chunked binary module format (§4.1).
func Write(w io.Writer, m *Module) error {
	var mod bytes.Buffer
	var hdr [20]byte
	putU16(hdr[0:2], Version)
	putU16(hdr[2:4], 0)
	putU32(hdr[4:8], uint32(m.NumGlobals))
	putU32(hdr[8:12], uint32(m.NumEntities))
	putU32(hdr[12:16], uint32(m.NumProperties))
	putU32(hdr[16:20], uint32(m.InitFunc))
	mod.Write(hdr[:])

	str := writeStringList(m.Strings)
	fun := writeFunctionTable(m.Functions)
	wrd := writeStringList(m.Words)
	grm := writeGrammar(m.Grammar)
	cmd := writeCommandTable(m.Commands)

	var form bytes.Buffer
	form.WriteString("ALI ")
	writeChunk(&form, idMOD, mod.Bytes())
	writeChunk(&form, idSTR, str)
	writeChunk(&form, idFUN, fun)
	writeChunk(&form, idWRD, wrd)
	writeChunk(&form, idGRM, grm)
	writeChunk(&form, idCMD, cmd)

	var out bytes.Buffer
	writeChunk(&out, "FORM", form.Bytes())
	_, err := w.Write(out.Bytes())
	return err
}

func writeStringList(ss []string) []byte {
	var buf bytes.Buffer
	var n [4]byte
	putU32(n[:], uint32(len(ss)))
	buf.Write(n[:])
	for _, s := range ss {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func writeSymbolRef(buf *bytes.Buffer, ref SymbolRef) {
	var b [4]byte
	putU32(b[:], uint32(int32(ref)))
	buf.Write(b[:])
}

func writeFunctionTable(fns []Function) []byte {
	var buf bytes.Buffer
	var n [4]byte
	putU32(n[:], uint32(len(fns)))
	buf.Write(n[:])

	for _, f := range fns {
		var h [4]byte
		putU16(h[0:2], 0) // reserved
		h[2] = byte(f.NRet)
		h[3] = byte(f.NParam)
		buf.Write(h[:])
	}
	for _, f := range fns {
		for _, instr := range f.Code {
			writeInstruction(&buf, instr)
		}
		writeInstruction(&buf, Instruction{}) // terminator
	}
	return buf.Bytes()
}

func writeInstruction(buf *bytes.Buffer, instr Instruction) {
	var b [4]byte
	b[0] = byte(instr.Op)
	putI24(b[1:4], instr.Arg)
	buf.Write(b[:])
}

func writeGrammar(g Grammar) []byte {
	var buf bytes.Buffer
	var totRules, totRefs int32
	for _, rs := range g {
		totRules += int32(len(rs))
		for _, r := range rs {
			totRefs += int32(len(r))
		}
	}

	var hdr [12]byte
	putU32(hdr[0:4], uint32(len(g)))
	putU32(hdr[4:8], uint32(totRules))
	putU32(hdr[8:12], uint32(totRefs))
	buf.Write(hdr[:])

	for _, rs := range g {
		var n [4]byte
		putU32(n[:], uint32(len(rs)))
		buf.Write(n[:])
		for _, rule := range rs {
			var nref [4]byte
			putU32(nref[:], uint32(len(rule)))
			buf.Write(nref[:])
			for _, ref := range rule {
				writeSymbolRef(&buf, ref)
			}
		}
	}
	return buf.Bytes()
}

func writeCommandTable(cmds []Command) []byte {
	var buf bytes.Buffer
	var sets [4]byte
	putU32(sets[:], 1)
	buf.Write(sets[:])

	var n [4]byte
	putU32(n[:], uint32(len(cmds)))
	buf.Write(n[:])
	for _, c := range cmds {
		writeSymbolRef(&buf, c.Symbol)
		var g, f [4]byte
		putU32(g[:], uint32(c.Guard))
		putU32(f[:], uint32(c.Function))
		buf.Write(g[:])
		buf.Write(f[:])
	}
	return buf.Bytes()
}
