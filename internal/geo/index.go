package geo

import (
	"sort"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadiusKm converts central angles to kilometres.
const EarthRadiusKm = 6371.0

// pruneSlack absorbs floating-point error in the triangle-inequality bounds so
// equidistant candidates are still visited for tie-breaking.
const pruneSlack = 1e-12

// AngularDistance returns the haversine central angle, in radians, between two points.
func AngularDistance(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b) / orb.EarthRadius
}

// DistanceKm returns the great-circle distance in kilometres on a 6371 km sphere.
func DistanceKm(a, b orb.Point) float64 {
	return AngularDistance(a, b) * EarthRadiusKm
}

// Index is a vantage-point tree over points under the haversine metric. It is
// immutable after construction and safe for concurrent queries.
type Index struct {
	points []orb.Point
	nodes  []vpNode
	root   int
}

type vpNode struct {
	point   int     // index into points
	radius  float64 // median angular distance from point to its descendants
	inside  int     // subtree with distance <= radius, -1 if empty
	outside int     // subtree with distance >= radius, -1 if empty
}

// NewIndex builds an index over points. Point order defines tie-breaking:
// among equidistant neighbours the lowest index wins.
func NewIndex(points []orb.Point) *Index {
	ix := &Index{
		points: points,
		nodes:  make([]vpNode, 0, len(points)),
		root:   -1,
	}
	items := make([]int, len(points))
	for i := range items {
		items[i] = i
	}
	ix.root = ix.build(items)
	return ix
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return len(ix.points) }

func (ix *Index) build(items []int) int {
	if len(items) == 0 {
		return -1
	}

	vantage := items[0]
	rest := items[1:]
	node := len(ix.nodes)
	ix.nodes = append(ix.nodes, vpNode{point: vantage, inside: -1, outside: -1})
	if len(rest) == 0 {
		return node
	}

	dist := make(map[int]float64, len(rest))
	for _, i := range rest {
		dist[i] = AngularDistance(ix.points[vantage], ix.points[i])
	}
	sort.Slice(rest, func(a, b int) bool {
		da, db := dist[rest[a]], dist[rest[b]]
		if da != db {
			return da < db
		}
		return rest[a] < rest[b]
	})

	mid := len(rest) / 2
	ix.nodes[node].radius = dist[rest[mid]]

	inside := ix.build(rest[:mid])
	outside := ix.build(rest[mid:])
	ix.nodes[node].inside = inside
	ix.nodes[node].outside = outside
	return node
}

type candidate struct {
	point int
	angle float64
}

func (c candidate) better(point int, angle float64) bool {
	if c.point < 0 || angle < c.angle {
		return true
	}
	return angle == c.angle && point < c.point
}

// Nearest returns the index of the point closest to q and the central angle to
// it. ok is false when the index is empty.
func (ix *Index) Nearest(q orb.Point) (point int, angle float64, ok bool) {
	best := candidate{point: -1}
	ix.search(ix.root, q, &best)
	if best.point < 0 {
		return -1, 0, false
	}
	return best.point, best.angle, true
}

func (ix *Index) search(n int, q orb.Point, best *candidate) {
	if n < 0 {
		return
	}
	node := ix.nodes[n]
	d := AngularDistance(q, ix.points[node.point])
	if best.better(node.point, d) {
		best.point, best.angle = node.point, d
	}

	if d < node.radius {
		ix.search(node.inside, q, best)
		if d+best.angle+pruneSlack >= node.radius {
			ix.search(node.outside, q, best)
		}
		return
	}

	ix.search(node.outside, q, best)
	if d-best.angle-pruneSlack <= node.radius {
		ix.search(node.inside, q, best)
	}
}
