package vm

// ---------------------------------------------------------------------------
// Closure & Upvalue
// ---------------------------------------------------------------------------

// Upvalue is a one-slot indirection cell for a captured variable. Every
// closure that captured the same parent local shares the one Upvalue, so a
// write through any of them is visible through all.
type Upvalue struct {
	value Value
}

// GetValue returns the cell contents.
func (u *Upvalue) GetValue() Value {
	return u.value
}

// SetValue stores into the cell.
func (u *Upvalue) SetValue(v Value) {
	u.value = v
}

// Closure binds a prototype to the upvalues it captured at creation. The
// upvalue vector is filled once during closure construction and never
// resized afterwards.
type Closure struct {
	proto    *Function
	upvalues []*Upvalue
}

// Prototype returns the compiled prototype.
func (c *Closure) Prototype() *Function {
	return c.proto
}

// SetPrototype binds the prototype; construction only.
func (c *Closure) SetPrototype(f *Function) {
	c.proto = f
}

// GetUpvalue returns the upvalue at index.
func (c *Closure) GetUpvalue(index int) *Upvalue {
	return c.upvalues[index]
}

// AddUpvalue appends an upvalue; construction only.
func (c *Closure) AddUpvalue(u *Upvalue) {
	c.upvalues = append(c.upvalues, u)
}

// UpvalueCount returns the number of captured upvalues.
func (c *Closure) UpvalueCount() int {
	return len(c.upvalues)
}
