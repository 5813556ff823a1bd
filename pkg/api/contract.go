package api

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// Member is one required (or optional) method of a Contract. Signature holds
// a nil function value of the expected type.
type Member struct {
	Name      string
	Signature any
	Optional  bool
}

// Contract lists the members a value must expose. Values satisfy a member
// either with a method or with a non-nil function field named <Name>Func.
type Contract struct {
	Members []Member
}

var (
	HostContract = Contract{Members: []Member{
		{Name: "Name", Signature: (func() string)(nil)},
		{Name: "Ls", Signature: (func(context.Context) ([]Container, error))(nil)},
		{Name: "Install", Signature: (func(context.Context) error)(nil), Optional: true},
		{Name: "Uninstall", Signature: (func(context.Context) error)(nil), Optional: true},
	}}

	ConfigContract = Contract{Members: []Member{
		{Name: "Install", Signature: (func(context.Context) error)(nil)},
		{Name: "Uninstall", Signature: (func(context.Context) error)(nil)},
	}}

	LoaderContract = Contract{Members: []Member{
		{Name: "PluginMetadata", Signature: (func() Metadata)(nil)},
		{Name: "Load", Signature: (func(context.Context, *Context, string, string, map[string]any) (any, error))(nil)},
		{Name: "Update", Signature: (func(context.Context, Container, *Context) error)(nil)},
		{Name: "Remove", Signature: (func(context.Context, Container) (bool, error))(nil)},
		{Name: "Switch", Signature: (func(context.Context, Container, *Context) error)(nil), Optional: true},
	}}

	LegacyLoaderContract = Contract{Members: []Member{
		{Name: "PluginMetadata", Signature: (func() Metadata)(nil)},
		{Name: "Process", Signature: (func(context.Context, *Context, string, string, map[string]any) (any, error))(nil)},
		{Name: "Remove", Signature: (func(context.Context, Container) (bool, error))(nil), Optional: true},
	}}

	CreatorContract = Contract{Members: []Member{
		{Name: "PluginMetadata", Signature: (func() Metadata)(nil)},
		{Name: "Create", Signature: (func(context.Context, CreateRequest) (any, error))(nil)},
	}}

	ActionContract = Contract{Members: []Member{
		{Name: "PluginMetadata", Signature: (func() Metadata)(nil)},
		{Name: "IsCompatible", Signature: (func(map[string]string) bool)(nil), Optional: true},
		{Name: "Process", Signature: (func(context.Context, map[string]string, map[string]any) (any, error))(nil)},
	}}

	InventoryActionContract = Contract{Members: []Member{
		{Name: "PluginMetadata", Signature: (func() Metadata)(nil)},
		{Name: "IsCompatible", Signature: (func(Container) bool)(nil), Optional: true},
		{Name: "Process", Signature: (func(context.Context, []Container) (any, error))(nil)},
	}}

	ThumbnailResolverContract = Contract{Members: []Member{
		{Name: "PluginMetadata", Signature: (func() Metadata)(nil)},
		{Name: "Resolve", Signature: (func(context.Context, Document, string) ([]byte, error))(nil)},
	}}
)

// ContractFor returns the contract plug-ins of kind must satisfy.
func ContractFor(kind Kind) (Contract, bool) {
	switch kind {
	case KindLoader:
		return LoaderContract, true
	case KindCreator:
		return CreatorContract, true
	case KindAction:
		return ActionContract, true
	case KindInventoryAction:
		return InventoryActionContract, true
	case KindThumbnailResolver:
		return ThumbnailResolverContract, true
	}
	return Contract{}, false
}

// CheckContract verifies that v exposes every member of c with the declared
// signature. All problems are collected into one *errors.InterfaceError.
func CheckContract(subject string, v any, c Contract) error {
	report := &avalonerrors.InterfaceError{Subject: subject}
	rv := reflect.ValueOf(v)

	for _, member := range c.Members {
		expected := reflect.TypeOf(member.Signature)
		found, ok := lookupMember(rv, member.Name)
		if !ok {
			if !member.Optional {
				report.Missing = append(report.Missing, member.Name)
			}
			continue
		}
		if found != expected {
			report.Mismatched = append(report.Mismatched, avalonerrors.SignatureMismatch{
				Member:   member.Name,
				Found:    renderSignature(found),
				Expected: renderSignature(expected),
			})
		}
	}

	if report.Empty() {
		return nil
	}
	return report
}

func lookupMember(rv reflect.Value, name string) (reflect.Type, bool) {
	if !rv.IsValid() {
		return nil, false
	}

	sv := rv
	for sv.Kind() == reflect.Pointer || sv.Kind() == reflect.Interface {
		if sv.IsNil() {
			break
		}
		sv = sv.Elem()
	}
	if sv.Kind() == reflect.Struct {
		if field := sv.FieldByName(name + "Func"); field.IsValid() && field.Kind() == reflect.Func {
			if field.IsNil() {
				return nil, false
			}
			return field.Type(), true
		}
	}

	if method := rv.MethodByName(name); method.IsValid() {
		return method.Type(), true
	}
	return nil, false
}

func renderSignature(t reflect.Type) string {
	return strings.TrimPrefix(t.String(), "func")
}

// Normalize validates a plug-in for kind and returns the value the registry
// stores: legacy loaders are adapted and function-backed plug-ins expose
// their optional capabilities.
func Normalize(kind Kind, p Plugin) (Plugin, error) {
	if p == nil {
		return nil, avalonerrors.NewPluginError("", fmt.Errorf("nil %s plugin", kind))
	}

	meta := p.PluginMetadata()
	if err := meta.Validate(); err != nil {
		return nil, avalonerrors.NewPluginError(meta.Name, err)
	}
	if meta.Kind != kind {
		return nil, avalonerrors.NewPluginError(meta.Name, fmt.Errorf("plugin kind is %s, expected %s", meta.Kind, kind))
	}

	if kind == KindLoader {
		return normalizeLoader(meta.Name, p)
	}

	contract, ok := ContractFor(kind)
	if !ok {
		return nil, avalonerrors.NewPluginError(meta.Name, fmt.Errorf("unsupported plugin kind %s", kind))
	}
	if err := CheckContract(meta.Name, p, contract); err != nil {
		return nil, err
	}
	return p, nil
}

func normalizeLoader(name string, p Plugin) (Plugin, error) {
	loaderErr := CheckContract(name, p, LoaderContract)
	if loaderErr == nil {
		if funcs, ok := p.(*LoaderFuncs); ok && funcs.SwitchFunc != nil {
			return switchingLoaderFuncs{LoaderFuncs: funcs}, nil
		}
		if loader, ok := p.(Loader); ok {
			return loader, nil
		}
	}

	if CheckContract(name, p, LegacyLoaderContract) == nil {
		if funcs, ok := p.(*LegacyLoaderFuncs); ok && funcs.RemoveFunc != nil {
			return AdaptLoader(removingLegacyFuncs{LegacyLoaderFuncs: funcs}), nil
		}
		if legacy, ok := p.(LegacyLoader); ok {
			return AdaptLoader(legacy), nil
		}
	}

	if loaderErr == nil {
		loaderErr = avalonerrors.NewPluginError(name, fmt.Errorf("does not implement the loader interface"))
	}
	return nil, loaderErr
}
