// Package mop is a metaobject protocol for building classes and roles at
// runtime.
//
// A Builder declares types from a Spec. Each type's own declarations form a
// Stem; composition layers the superclass, the composed roles and the type's
// own stem into one effective Stem and compiles a dispatch table from it:
//
//	inherited  <  roles (one level, differing methods conflict)  <  own
//
// Roles list method names they require; a class composing them must provide
// those methods, while a role composing a role simply inherits the demand.
// Method modifiers (before, after, around, override, augment) wrap whatever
// method holds their target name once everything else is merged.
//
// Types can be extended after declaration through Meta.Extend. Extending a
// class recomposes its subclasses too and is visible to existing instances of
// all of them; types that composed a role keep the snapshot they were built
// from.
//
// Declaring and extending types is safe for concurrent use. Instances are not.
package mop
