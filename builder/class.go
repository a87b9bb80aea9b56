package builder

import (
	"reflect"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
	"github.com/napigo/napigo/hostctx"
	"github.com/napigo/napigo/overload"
)

// ClassBuilder declares a host class: a constructor overload group,
// instance methods and accessors, and static members. Build defines
// the class in the environment and registers it in the runtime
// context, so host objects of the class's type can be wrapped.
//
// Builder calls latch the first error; Build reports it.
type ClassBuilder struct {
	ctx         *hostctx.Context
	name        string
	typ         reflect.Type
	ctor        *overload.Group
	descriptors []napigo.PropertyDescriptor
	err         error
}

// NewClass starts a class declaration. hostType is the dynamic Go type
// of the instances the class wraps (typically a pointer type).
func NewClass(ctx *hostctx.Context, name string, hostType reflect.Type) *ClassBuilder {
	b := &ClassBuilder{ctx: ctx, name: name, typ: hostType}
	if name == "" {
		b.err = errors.InvalidInput(errors.StageCallback, "class name must not be empty")
	}
	if hostType == nil {
		b.err = errors.InvalidInput(errors.StageCallback, "class host type must not be nil")
	}
	return b
}

func (b *ClassBuilder) fail(err error) *ClassBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Constructor sets the constructor overload group. Each candidate's
// target must return the host object (optionally with an error).
func (b *ClassBuilder) Constructor(group *overload.Group) *ClassBuilder {
	b.ctor = group
	return b
}

// Method declares an instance method. Candidate targets take the host
// object as their first parameter, followed by the declared parameters.
func (b *ClassBuilder) Method(name string, group *overload.Group) *ClassBuilder {
	b.descriptors = append(b.descriptors, napigo.PropertyDescriptor{
		Name:       name,
		Method:     trampoline(b.ctx, group, callMethod),
		Attributes: napigo.DefaultMethod,
	})
	return b
}

// StaticMethod declares a method on the constructor itself; targets
// take no receiver.
func (b *ClassBuilder) StaticMethod(name string, group *overload.Group) *ClassBuilder {
	b.descriptors = append(b.descriptors, napigo.PropertyDescriptor{
		Name:       name,
		Method:     trampoline(b.ctx, group, callFunction),
		Attributes: napigo.DefaultMethod | napigo.Static,
	})
	return b
}

// Getter declares a read-only accessor. fn is func(recv) value.
func (b *ClassBuilder) Getter(name string, fn any) *ClassBuilder {
	return b.Accessor(name, fn, nil)
}

// Accessor declares a property with a getter (func(recv) value) and an
// optional setter (func(recv, value)).
func (b *ClassBuilder) Accessor(name string, get, set any) *ClassBuilder {
	d := napigo.PropertyDescriptor{Name: name, Attributes: napigo.DefaultProperty}
	if get != nil {
		g, err := singleGroup(b.name+"."+name+".get", get, 1)
		if err != nil {
			return b.fail(err)
		}
		d.Getter = trampoline(b.ctx, g, callMethod)
	}
	if set != nil {
		g, err := singleGroup(b.name+"."+name+".set", set, 1)
		if err != nil {
			return b.fail(err)
		}
		d.Setter = trampoline(b.ctx, g, callMethod)
	}
	b.descriptors = append(b.descriptors, d)
	return b
}

// Build defines the class and registers it for b's host type. Must run
// on the environment's owning goroutine.
func (b *ClassBuilder) Build(env napigo.Env) (napigo.Value, error) {
	if b.err != nil {
		return 0, b.err
	}

	var ctor napigo.Callback
	if b.ctor != nil {
		ctor = trampoline(b.ctx, b.ctor, callConstructor)
	}

	cls, st := b.ctx.Platform().DefineClass(env, b.name, ctor, nil, b.descriptors)
	if !st.OK() {
		return 0, statusErr(b.ctx, st)
	}
	if err := b.ctx.RegisterClass(b.typ, cls); err != nil {
		return 0, err
	}
	return cls, nil
}
