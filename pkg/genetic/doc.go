// Package genetic implements the population operators of the evolutionary
// curve search.
//
// An individual is a cubic Bezier whose endpoints are fixed by the segment
// being solved. Only the two control points are genes. The operators are:
//
//   - [Initialize]: symmetric bows around the segment midpoint
//   - [Select]: truncation selection, fittest first
//   - [Crossover]: blend crossover between adjacently ranked survivors
//   - [Mutate]: gaussian perturbation of a single control coordinate
//
// Every operator takes its random source explicitly so that a run is
// reproducible from a seed and so that concurrent solvers never share a
// generator.
package genetic
