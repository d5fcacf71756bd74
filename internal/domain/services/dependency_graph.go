package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
)

// DependencyGraph는 인터페이스 간 의존성(VLAN의 base-iface, 포트의 컨트롤러)
// 을 나타내는 방향 그래프입니다. 노드 배열과 인덱스 기반 간선으로 표현하여
// 재귀 없이 순회합니다
type DependencyGraph struct {
	names []string
	index map[string]int
	// edges[parent]에는 parent가 먼저 존재해야 하는 자식들의 인덱스가
	// 들어갑니다
	edges [][]int
	indeg []int
}

// BuildDependencyGraph는 인터페이스 목록에서 의존성 그래프를 구성합니다.
// 목록 밖의 인터페이스(이미 존재하는 부모)에 대한 의존성은 간선을 만들지
// 않습니다
func BuildDependencyGraph(ifaces []entities.Interface) *DependencyGraph {
	g := &DependencyGraph{
		names: make([]string, len(ifaces)),
		index: make(map[string]int, len(ifaces)),
		edges: make([][]int, len(ifaces)),
		indeg: make([]int, len(ifaces)),
	}
	for i := range ifaces {
		g.names[i] = ifaces[i].Name
		g.index[ifaces[i].Name] = i
	}
	for i := range ifaces {
		parent := ifaces[i].ParentName()
		if parent == "" {
			continue
		}
		p, ok := g.index[parent]
		if !ok || p == i {
			continue
		}
		g.edges[p] = append(g.edges[p], i)
		g.indeg[i]++
	}
	return g
}

// TopologicalOrder는 부모가 자식보다 먼저 오는 인터페이스 이름 순서를
// 반환합니다. Kahn 알고리즘을 사용하며, 순환이 있으면 백엔드 호출 전에
// DependencyCycleError로 실패합니다. 입력 순서와 무관하게 결정적인 결과를
// 내도록 동률은 이름순으로 정렬합니다
func (g *DependencyGraph) TopologicalOrder() ([]string, error) {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	var ready []int
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	sortByName(ready, g.names)

	order := make([]string, 0, len(g.names))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, g.names[node])

		var unlocked []int
		for _, child := range g.edges[node] {
			indeg[child]--
			if indeg[child] == 0 {
				unlocked = append(unlocked, child)
			}
		}
		sortByName(unlocked, g.names)
		ready = append(ready, unlocked...)
	}

	if len(order) < len(g.names) {
		var remaining []string
		for i, d := range indeg {
			if d > 0 {
				remaining = append(remaining, g.names[i])
			}
		}
		sort.Strings(remaining)
		return nil, errors.NewDependencyCycleError(
			fmt.Sprintf("인터페이스 의존성에 순환이 있음: %s", strings.Join(remaining, ", ")))
	}

	return order, nil
}

func sortByName(idx []int, names []string) {
	sort.Slice(idx, func(a, b int) bool {
		return names[idx[a]] < names[idx[b]]
	})
}
