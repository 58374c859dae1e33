package jsonapi

// ResourceBuilder accumulates one resource object.
type ResourceBuilder struct {
	res Resource
}

// NewResource starts a resource of the given type and id.
func NewResource(typ, id string) *ResourceBuilder {
	return &ResourceBuilder{res: Resource{
		Type:       typ,
		ID:         id,
		Attributes: map[string]any{},
	}}
}

// Attr sets an attribute.
func (b *ResourceBuilder) Attr(name string, v any) *ResourceBuilder {
	b.res.Attributes[name] = v
	return b
}

// OptionalAttr sets a string attribute only when it is not empty.
func (b *ResourceBuilder) OptionalAttr(name, v string) *ResourceBuilder {
	if v != "" {
		b.res.Attributes[name] = v
	}
	return b
}

// Self sets the resource's self link.
func (b *ResourceBuilder) Self(href string) *ResourceBuilder {
	b.res.Links = &Links{Self: href}
	return b
}

// Meta sets a resource-level meta member.
func (b *ResourceBuilder) Meta(name string, v any) *ResourceBuilder {
	if b.res.Meta == nil {
		b.res.Meta = Meta{}
	}
	b.res.Meta[name] = v
	return b
}

// Build returns the resource. The builder must not be used afterwards.
func (b *ResourceBuilder) Build() Resource {
	return b.res
}

// Collect converts values to resources in order.
func Collect[T any](values []T, fn func(T) Resource) []Resource {
	out := make([]Resource, 0, len(values))
	for _, v := range values {
		out = append(out, fn(v))
	}
	return out
}
