package typing

import (
	"pjulia/pkg/automata"
	"pjulia/pkg/lang"
)

// Program is the typed output handed to the HIR lowering: declarations
// grouped and ordered the way they appeared in the source. Order matters
// all the way down to the emitted assembly, so maps carry companion order
// slices.
type Program struct {
	Structures  map[string]*lang.Structure
	StructOrder []string

	Functions map[string][]*lang.Function
	FuncOrder []string

	Globals    []*lang.Exp // top-level expressions, in order
	GlobalVars []string    // assigned top-level names, first-seen order
}

func isReservedName(n string) bool {
	switch n {
	case "div", "print", "println":
		return true
	}
	return false
}

type envEntry struct {
	ty    lang.StaticType
	scope lang.Scope
}

type checker struct {
	structures  map[string]*lang.Structure
	structOrder []string

	functions map[string][]*lang.Function
	funcOrder []string
	sigs      map[string][]FuncSig

	knownTypes    map[lang.StaticType]bool
	mutableFields map[string]bool
	allFields     map[string]lang.StaticType
	fieldOwner    map[string]string

	globalVars []string
	globalSeen map[string]bool
	globalExps []*lang.Exp

	env map[string][]envEntry
}

func newChecker() *checker {
	known := map[lang.StaticType]bool{
		lang.Any():     true,
		lang.Nothing(): true,
		lang.Int64():   true,
		lang.Bool():    true,
		lang.Str():     true,
	}
	return &checker{
		structures:    make(map[string]*lang.Structure),
		functions:     make(map[string][]*lang.Function),
		sigs:          make(map[string][]FuncSig),
		knownTypes:    known,
		mutableFields: make(map[string]bool),
		allFields:     make(map[string]lang.StaticType),
		fieldOwner:    make(map[string]string),
		globalSeen:    make(map[string]bool),
		env:           make(map[string][]envEntry),
	}
}

// visitStructure registers one struct declaration: unique name, globally
// unique field names, field types declared before use. A structure may
// refer to itself.
func (c *checker) visitStructure(s *lang.Structure) error {
	if _, ok := c.structures[s.Name.Name]; ok {
		return automata.Errorf(s.Span,
			"The ident '%s' is already taken by another structure", s.Name.Name)
	}
	c.knownTypes[lang.Struct(s.Name.Name)] = true

	for _, field := range s.Fields {
		fname := field.Name.Name
		if _, ok := c.allFields[fname]; ok {
			return automata.Errorf(field.Span,
				"The field name '%s' is already taken by this structure or another one", fname)
		}
		if !c.knownTypes[field.Ty] {
			return automata.Errorf(field.Span,
				"This type is malformed, either it is not a primitive, or it's not this structure itself or another structure declared before")
		}
		c.allFields[fname] = field.Ty
		c.fieldOwner[fname] = s.Name.Name
		if s.Mutable {
			c.mutableFields[fname] = true
		}
	}

	c.structures[s.Name.Name] = s
	c.structOrder = append(c.structOrder, s.Name.Name)
	return nil
}

// visitFunction registers one overload: the name must not be reserved, the
// signature must be well formed, and no prior overload may have the exact
// same parameter list.
func (c *checker) visitFunction(f *lang.Function) error {
	if isReservedName(f.Name) {
		return automata.Errorf(f.Span,
			"The ident '%s' is a reserved name, it cannot be used as a function name", f.Name)
	}
	if !c.knownTypes[f.RetTy] {
		return automata.Errorf(f.Span,
			"The return type '%s' of '%s' is malformed, either it's not a primitive or a declared structure", f.RetTy, f.Name)
	}

	names := make(map[string]bool)
	for _, param := range f.Params {
		if names[param.Name.Name] {
			return automata.Errorf(param.Span,
				"The ident '%s' is already taken by another argument", param.Name.Name)
		}
		names[param.Name.Name] = true
		if !c.knownTypes[param.Ty] {
			return automata.Errorf(param.Span,
				"This type is malformed, either it is not a primitive or it's not a declared before structure")
		}
	}

	sig := buildSig(f)
	for _, prev := range c.sigs[f.Name] {
		if callableWithExactly(sig.Params, prev) {
			return automata.Errorf(f.Span,
				"The function '%s' has already been defined with the exact same signature (%s), add type annotations to disambiguate or remove duplicates",
				f.Name, formatSignature(sig.Params))
		}
	}

	if _, ok := c.functions[f.Name]; !ok {
		c.funcOrder = append(c.funcOrder, f.Name)
	}
	c.sigs[f.Name] = append(c.sigs[f.Name], sig)
	c.functions[f.Name] = append(c.functions[f.Name], f)
	return nil
}

// visitExp registers one top-level expression; the names it assigns become
// global variables.
func (c *checker) visitExp(e *lang.Exp) {
	for _, name := range CollectAssigned(e) {
		if !c.globalSeen[name] {
			c.globalSeen[name] = true
			c.globalVars = append(c.globalVars, name)
		}
	}
	c.globalExps = append(c.globalExps, e)
}

func (c *checker) pushEnv(name string, ty lang.StaticType, scope lang.Scope) {
	c.env[name] = append(c.env[name], envEntry{ty: ty, scope: scope})
}

func (c *checker) popEnv(name string) {
	entries := c.env[name]
	if len(entries) <= 1 {
		delete(c.env, name)
	} else {
		c.env[name] = entries[:len(entries)-1]
	}
}

func (c *checker) lookupEnv(name string) (envEntry, bool) {
	entries := c.env[name]
	if len(entries) == 0 {
		return envEntry{}, false
	}
	return entries[len(entries)-1], true
}

// extendLocals pushes an Any-typed local entry for each name, deduplicated,
// skipping names in exclude. Returns the pushed names for the matching
// unextend.
func (c *checker) extendLocals(names []string, exclude map[string]bool) []string {
	var pushed []string
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] || exclude[name] {
			continue
		}
		seen[name] = true
		c.pushEnv(name, lang.Any(), lang.ScopeLocal)
		pushed = append(pushed, name)
	}
	return pushed
}

func (c *checker) unextend(names []string) {
	for _, name := range names {
		c.popEnv(name)
	}
}

// Check runs the whole static pass and returns the typed program.
func Check(decls []*lang.Decl) (*Program, error) {
	c := newChecker()

	// Phase 1: the global environment.
	for _, d := range decls {
		switch v := d.Val.(type) {
		case lang.StructureDecl:
			if err := c.visitStructure(v.S); err != nil {
				return nil, err
			}
		case lang.FunctionDecl:
			if err := c.visitFunction(v.F); err != nil {
				return nil, err
			}
		case lang.ExpDecl:
			c.visitExp(v.E)
		}
	}

	// Phase 2: typing. Globals first, then every overload of every
	// function, in declaration order.
	for _, name := range c.globalVars {
		c.pushEnv(name, lang.Any(), lang.ScopeGlobal)
	}
	c.pushEnv("nothing", lang.Nothing(), lang.ScopeGlobal)

	for _, e := range c.globalExps {
		if err := c.typeExp(e); err != nil {
			return nil, err
		}
	}

	for _, name := range c.funcOrder {
		for _, f := range c.functions[name] {
			params := make(map[string]bool)
			for _, p := range f.Params {
				c.pushEnv(p.Name.Name, p.Ty, lang.ScopeLocal)
				params[p.Name.Name] = true
			}
			extra := c.extendLocals(CollectAssignedExps(f.Body.Exps), params)

			if err := c.typeBlock(f.Body); err != nil {
				return nil, err
			}
			if err := verifyImplicitReturn(f); err != nil {
				return nil, err
			}
			if err := verifyExplicitReturns(f.Body, f.RetTy); err != nil {
				return nil, err
			}

			for _, p := range f.Params {
				c.popEnv(p.Name.Name)
			}
			c.unextend(extra)
		}
	}

	return &Program{
		Structures:  c.structures,
		StructOrder: c.structOrder,
		Functions:   c.functions,
		FuncOrder:   c.funcOrder,
		Globals:     c.globalExps,
		GlobalVars:  c.globalVars,
	}, nil
}
