package mop

// Spec is a declaration of a class, role or extension.
type Spec struct {
	// Isa names the superclass. Classes only; defaults to the root class.
	Isa *Class
	// Does lists roles to compose, in order. They form one precedence level.
	Does []*Role
	// DoesNot lists roles to remove. Extensions only.
	DoesNot []*Role

	Has       []AttributeDecl
	Methods   []MethodDecl
	Requires  []string
	Modifiers []ModifierDecl

	// Constructor replaces the default construction workflow. Classes only.
	Constructor Constructor

	// Body runs once the type is composed and registered.
	Body func(t Type) error
}

// AttributeDecl declares one attribute. Spec accepts every form
// NormalizeAttribute does.
type AttributeDecl struct {
	Name string
	Spec any
}

// MethodDecl declares one method.
type MethodDecl struct {
	Name    string
	Body    Func
	Innable bool
}

// ModifierDecl declares one method modifier.
type ModifierDecl struct {
	Kind ModifierKind
	Name string
	Body Func
}

// Has declares an attribute.
func Has(name string, spec any) AttributeDecl {
	return AttributeDecl{Name: name, Spec: spec}
}

// Def declares a method.
func Def(name string, body Func) MethodDecl {
	return MethodDecl{Name: name, Body: body}
}

// DefInnable declares a method that subclasses may augment.
func DefInnable(name string, body Func) MethodDecl {
	return MethodDecl{Name: name, Body: body, Innable: true}
}

func Before(name string, body Func) ModifierDecl {
	return ModifierDecl{Kind: BeforeModifier, Name: name, Body: body}
}

func After(name string, body Func) ModifierDecl {
	return ModifierDecl{Kind: AfterModifier, Name: name, Body: body}
}

func Around(name string, body Func) ModifierDecl {
	return ModifierDecl{Kind: AroundModifier, Name: name, Body: body}
}

func Override(name string, body Func) ModifierDecl {
	return ModifierDecl{Kind: OverrideModifier, Name: name, Body: body}
}

func Augment(name string, body Func) ModifierDecl {
	return ModifierDecl{Kind: AugmentModifier, Name: name, Body: body}
}

// BuildStem turns the property declarations of spec into a sealed stem owned
// by label. Isa, Does, DoesNot, Constructor and Body are ignored. A name
// declared twice directly fails with ErrDuplicateName.
func BuildStem(label string, spec Spec) (*Stem, error) {
	stem, err := buildStem(label, spec)
	if err != nil {
		return nil, withType(err, label)
	}
	return stem, nil
}

func buildStem(label string, spec Spec) (*Stem, error) {
	attrs := NewMutable(KindAttribute)
	for _, d := range spec.Has {
		attr, err := NormalizeAttribute(d.Name, label, d.Spec)
		if err != nil {
			return nil, err
		}
		if err := attrs.Add(attr); err != nil {
			return nil, err
		}
	}

	methods := NewMutable(KindMethod)
	for _, d := range spec.Methods {
		if d.Name == "" {
			return nil, invalidDeclaration("method name must not be empty")
		}
		if d.Body == nil {
			return nil, withName(invalidDeclaration("method %q has no body", d.Name), d.Name)
		}
		if err := methods.Add(newMethod(d.Name, label, d.Body, d.Innable)); err != nil {
			return nil, err
		}
	}

	reqs := NewMutable(KindRequirement)
	for _, name := range spec.Requires {
		if name == "" {
			return nil, invalidDeclaration("requirement name must not be empty")
		}
		if err := reqs.Add(newRequirement(name, label)); err != nil {
			return nil, err
		}
	}

	mods := &ModifierSet{}
	for _, d := range spec.Modifiers {
		if d.Name == "" {
			return nil, invalidDeclaration("modifier target must not be empty")
		}
		if d.Kind < BeforeModifier || d.Kind > AugmentModifier {
			return nil, withName(invalidDeclaration("modifier on %q has unknown kind %d", d.Name, d.Kind), d.Name)
		}
		if d.Body == nil {
			return nil, withName(invalidDeclaration("%s modifier on %q has no body", d.Kind, d.Name), d.Name)
		}
		if err := mods.addDirect(newModifier(d.Kind, d.Name, label, d.Body)); err != nil {
			return nil, err
		}
	}

	// direct declarations never produce conflict markers
	stem := &Stem{Modifiers: mods}
	stem.Attributes, _ = attrs.Seal()
	stem.Methods, _ = methods.Seal()
	stem.Requirements, _ = reqs.Seal()
	return stem, nil
}
