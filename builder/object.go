package builder

import (
	"github.com/napigo/napigo"
	"github.com/napigo/napigo/hostctx"
	"github.com/napigo/napigo/overload"
)

// ObjectBuilder declares properties to define on an existing object.
type ObjectBuilder struct {
	ctx         *hostctx.Context
	descriptors []napigo.PropertyDescriptor
	err         error
}

// NewObject starts an object declaration.
func NewObject(ctx *hostctx.Context) *ObjectBuilder {
	return &ObjectBuilder{ctx: ctx}
}

func (b *ObjectBuilder) fail(err error) *ObjectBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Value declares a plain data property.
func (b *ObjectBuilder) Value(name string, v napigo.Value) *ObjectBuilder {
	b.descriptors = append(b.descriptors, napigo.PropertyDescriptor{
		Name:       name,
		Value:      v,
		Attributes: napigo.DefaultProperty,
	})
	return b
}

// Function declares a callable property backed by an overload group;
// candidate targets take no receiver.
func (b *ObjectBuilder) Function(name string, group *overload.Group) *ObjectBuilder {
	b.descriptors = append(b.descriptors, napigo.PropertyDescriptor{
		Name:       name,
		Method:     trampoline(b.ctx, group, callFunction),
		Attributes: napigo.DefaultMethod,
	})
	return b
}

// Func declares a callable property from a single Go function,
// deriving its parameter list by reflection.
func (b *ObjectBuilder) Func(name string, fn any) *ObjectBuilder {
	g, err := singleGroup(name, fn, 0)
	if err != nil {
		return b.fail(err)
	}
	return b.Function(name, g)
}

// Accessor declares a computed property: get is func() value, set is
// an optional func(value).
func (b *ObjectBuilder) Accessor(name string, get, set any) *ObjectBuilder {
	d := napigo.PropertyDescriptor{Name: name, Attributes: napigo.DefaultProperty}
	if get != nil {
		g, err := singleGroup(name+".get", get, 0)
		if err != nil {
			return b.fail(err)
		}
		d.Getter = trampoline(b.ctx, g, callFunction)
	}
	if set != nil {
		g, err := singleGroup(name+".set", set, 0)
		if err != nil {
			return b.fail(err)
		}
		d.Setter = trampoline(b.ctx, g, callFunction)
	}
	b.descriptors = append(b.descriptors, d)
	return b
}

// Apply defines the declared properties on obj. Must run on the
// environment's owning goroutine.
func (b *ObjectBuilder) Apply(env napigo.Env, obj napigo.Value) error {
	if b.err != nil {
		return b.err
	}
	if st := b.ctx.Platform().DefineProperties(env, obj, b.descriptors); !st.OK() {
		return statusErr(b.ctx, st)
	}
	return nil
}
