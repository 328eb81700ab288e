package reaper

// workerSplit derives the lister and deleter pool sizes from the sub-prefix
// fan-out and the global thread ceiling.
//
// The starting point is one lister per sub-prefix with twice as many
// deleters, since a batch delete call covers many enumerated refs but
// deletion latency dominates. When the combined total would exceed
// maxThreads, a third of the budget goes to listers and the remainder to
// deleters; the lister pool then works through the sub-prefix list as a
// shared work queue instead of one prefix per worker.
//
// maxThreads below 3 would derive zero listers; Config.Validate rejects it.
func workerSplit(prefixCount, maxThreads int) (listWorkers, deleteWorkers int) {
	if prefixCount <= 0 {
		return 0, 0
	}

	listWorkers = prefixCount
	deleteWorkers = 2 * prefixCount

	if listWorkers+deleteWorkers > maxThreads {
		listWorkers = maxThreads / 3
		deleteWorkers = maxThreads - listWorkers
	}

	return listWorkers, deleteWorkers
}
