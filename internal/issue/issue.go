// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog page. The zero value means "no page".
type Id int

const (
	HelperUnavailableId Id = iota + 1
	DirectoryAccessId
	WatcherFailedId
	ConfigLoadFailedId
	ModuleNotFoundId
	PermissionDeniedId
)

type (
	// MarkdownMsg is the Markdown body of a catalog page.
	MarkdownMsg string

	// HttpLink is a documentation URL listed under a page.
	HttpLink string

	// Issue is one troubleshooting page.
	Issue struct {
		id       Id
		name     string      // slug used by `kpmd issue <name>`
		mdMsg    MarkdownMsg // rendered with glamour
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id { return i.id }

// Name is the slug accepted by Lookup.
func (i *Issue) Name() string { return i.name }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) ExtLinks() []HttpLink { return slices.Clone(i.extLinks) }

// Render renders the page for a terminal. stylePath is a glamour style name
// ("dark", "light", "notty") or a path to a style file.
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.extLinks {
			md += "\n- <" + string(link) + ">"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	helperUnavailableIssue = &Issue{
		id:   HelperUnavailableId,
		name: "helper-unavailable",
		mdMsg: `
# The kpm helper is not available

kpmd drives kernel plugin modules through the ` + "`kpmmgr`" + ` helper. Before
doing anything else it checks that the helper exists, is executable and
answers a version query without reporting an error. One of those checks
failed, so no module was loaded, unloaded or deleted and the module
directory was left untouched.

## Things you can try
- Check that KernelSU is installed and that your kernel has KPM support
- Check the helper path:
~~~
$ ls -l /data/adb/ksu/bin/kpmmgr
$ /data/adb/ksu/bin/kpmmgr version
~~~
- Point kpmd at another helper with ` + "`--helper`" + ` or ` + "`helper.path`" + ` in the config file`,
		extLinks: []HttpLink{"https://kernelsu.org/guide/installation.html"},
	}

	directoryAccessIssue = &Issue{
		id:   DirectoryAccessId,
		name: "directory-access",
		mdMsg: `
# The module directory cannot be used

kpmd could not create or read the module directory.

## Things you can try
- Run kpmd as root: the default directory ` + "`/data/adb/kpm`" + ` is only writable by root
- Make sure the configured path is a directory and not a file
- Set another directory with ` + "`--module-dir`" + ` or ` + "`module_dir`" + ` in the config file`,
	}

	watcherFailedIssue = &Issue{
		id:   WatcherFailedId,
		name: "watcher-failed",
		mdMsg: `
# Watching the module directory failed

The filesystem watcher stopped. New module files are no longer loaded and
removed files are no longer unloaded until kpmd restarts.

## Common causes
- The inotify watch limit is exhausted
- The process or the system ran out of file descriptors
- The module directory was deleted

## Things you can try
~~~
$ cat /proc/sys/fs/inotify/max_user_watches
$ sysctl -w fs.inotify.max_user_watches=65536
~~~
- Restart kpmd once the cause is fixed`,
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		name: "config-load-failed",
		mdMsg: `
# The configuration could not be loaded

The config file is written in CUE and checked against a schema.

## Things you can try
- Print the effective configuration:
~~~
$ kpmd config show
~~~
- Write a fresh default file and edit it:
~~~
$ kpmd config init
~~~

## Example
~~~cue
module_dir: "/data/adb/kpm"
helper: {
	path: "/data/adb/ksu/bin/kpmmgr"
}
safe_mode: {
	mode: "auto"
}
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	moduleNotFoundIssue = &Issue{
		id:   ModuleNotFoundId,
		name: "module-not-found",
		mdMsg: `
# Module not found

No module file matches the name or path you gave.

## Things you can try
- List the modules kpmd can see:
~~~
$ kpmd list
~~~
- Module files need the configured extension (` + "`.kpm`" + ` by default)`,
	}

	permissionDeniedIssue = &Issue{
		id:   PermissionDeniedId,
		name: "permission-denied",
		mdMsg: `
# Permission denied

Loading and unloading kernel modules needs root.

## Things you can try
- Run kpmd from a root shell:
~~~
$ su -c kpmd run
~~~
- Check that the helper binary keeps its execute permission`,
	}

	issues = map[Id]*Issue{
		helperUnavailableIssue.Id(): helperUnavailableIssue,
		directoryAccessIssue.Id():   directoryAccessIssue,
		watcherFailedIssue.Id():     watcherFailedIssue,
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		moduleNotFoundIssue.Id():    moduleNotFoundIssue,
		permissionDeniedIssue.Id():  permissionDeniedIssue,
	}
)

// Values returns every catalog page ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

// Get returns the page for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// Lookup finds a page by its slug.
func Lookup(name string) (*Issue, bool) {
	for _, i := range issues {
		if i.name == name {
			return i, true
		}
	}
	return nil, false
}

// Names returns every page slug ordered by Id.
func Names() []string {
	names := make([]string, 0, len(issues))
	for _, i := range Values() {
		names = append(names, i.name)
	}
	return names
}
