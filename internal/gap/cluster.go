package gap

// Noise is the cluster label for points that belong to no cluster.
const Noise = -1

// Cluster groups vectors with DBSCAN over cosine distance (1 - cosine
// similarity). Labels are dense cluster ids starting at 0; unclustered
// points get Noise. Fewer vectors than minSamples yields an empty label
// slice.
func Cluster(vectors [][]float32, eps float64, minSamples int) []int {
	if minSamples < 1 {
		minSamples = 1
	}
	if len(vectors) < minSamples {
		return nil
	}

	const unvisited = -2
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(i int) []int {
		var ns []int
		for j := range vectors {
			if 1-Cosine(vectors[i], vectors[j]) <= eps {
				ns = append(ns, j)
			}
		}
		return ns
	}

	cluster := 0
	for i := range vectors {
		if labels[i] != unvisited {
			continue
		}
		ns := neighbors(i)
		if len(ns) < minSamples {
			labels[i] = Noise
			continue
		}

		labels[i] = cluster
		// Expand the cluster through every density-reachable point.
		queue := append([]int(nil), ns...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if labels[j] == Noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if jns := neighbors(j); len(jns) >= minSamples {
				queue = append(queue, jns...)
			}
		}
		cluster++
	}
	return labels
}
