package builder

import (
	"github.com/napigo/napigo"
	"github.com/napigo/napigo/hostctx"
	"github.com/napigo/napigo/overload"
)

// ModuleBuilder declares a module's export surface: values, functions,
// and classes. Apply populates an exports object in one pass.
type ModuleBuilder struct {
	ctx     *hostctx.Context
	props   *ObjectBuilder
	classes []*ClassBuilder
	err     error
}

// NewModule starts a module declaration.
func NewModule(ctx *hostctx.Context) *ModuleBuilder {
	return &ModuleBuilder{ctx: ctx, props: NewObject(ctx)}
}

// ExportValue exports a plain value.
func (m *ModuleBuilder) ExportValue(name string, v napigo.Value) *ModuleBuilder {
	m.props.Value(name, v)
	return m
}

// ExportFunction exports an overloaded function.
func (m *ModuleBuilder) ExportFunction(name string, group *overload.Group) *ModuleBuilder {
	m.props.Function(name, group)
	return m
}

// ExportFunc exports a single Go function under name.
func (m *ModuleBuilder) ExportFunc(name string, fn any) *ModuleBuilder {
	m.props.Func(name, fn)
	return m
}

// ExportClass exports a class built from b under its declared name.
func (m *ModuleBuilder) ExportClass(b *ClassBuilder) *ModuleBuilder {
	m.classes = append(m.classes, b)
	return m
}

// Apply builds the declared classes and defines every export on the
// exports object. Must run on the environment's owning goroutine.
func (m *ModuleBuilder) Apply(env napigo.Env, exports napigo.Value) error {
	if m.err != nil {
		return m.err
	}
	platform := m.ctx.Platform()

	for _, cb := range m.classes {
		cls, err := cb.Build(env)
		if err != nil {
			return err
		}
		if st := platform.SetProperty(env, exports, cb.name, cls); !st.OK() {
			return statusErr(m.ctx, st)
		}
	}
	return m.props.Apply(env, exports)
}
