// Package vm implements the Garnet runtime object model.
//
// This package contains:
//   - Classes, modules, singleton classes and include proxies
//   - Ancestor linearization with per-epoch memoization
//   - VTable-based method dispatch with inline caches and super lookup
//   - Constant scoping, autoload and const_missing
//   - Refinements activated per lexical scope
//   - Exceptions as Go errors, catch/throw and non-local exits
//   - Feature loading with require and load
//   - Primitive class implementations
//
// All state lives in a *VM; there are no package-level registries, so
// several VMs can run side by side.
package vm
