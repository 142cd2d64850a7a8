package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/sunstory/openusage/internal/plugin/bridge"
)

// installHostContext attaches __openusage_ctx (and the "ctx"/"host" globals
// scripts actually write against) to vm: nowIso, app info, and every host.*
// capability. http.request, ls.discover, and ccusage.query are installed as
// thin JS wrappers over a JSON-marshaling "raw" native function — the same
// two-step pattern original_source's host_api.rs uses (inject_http followed
// by patch_http_wrapper) — so the Go side never has to convert an arbitrary
// options object via reflection.
func installHostContext(vm *goja.Runtime, br *bridge.Bridge) error {
	root := vm.NewObject()
	_ = root.Set("nowIso", br.NowISO())

	app := br.App()
	appObj := vm.NewObject()
	_ = appObj.Set("version", app.Version)
	_ = appObj.Set("platform", app.Platform)
	_ = appObj.Set("appDataDir", app.AppDataDir)
	_ = appObj.Set("pluginDataDir", app.PluginDataDir)
	_ = root.Set("app", appObj)

	host := vm.NewObject()
	installLog(vm, host, br)
	installFS(vm, host, br)
	installEnv(vm, host, br)
	installKeychain(vm, host, br)
	installVault(vm, host, br)
	installSQLite(vm, host, br)

	if err := root.Set("host", host); err != nil {
		return err
	}
	if err := vm.Set("__openusage_ctx", root); err != nil {
		return err
	}
	// Convenience globals: plugin scripts write "ctx.line.progress(...)" and
	// "host.log.info(...)" directly rather than fully qualifying through
	// __openusage_ctx each time.
	if err := vm.Set("ctx", root); err != nil {
		return err
	}
	if err := vm.Set("host", host); err != nil {
		return err
	}

	if err := installHTTP(vm, host, br); err != nil {
		return fmt.Errorf("install http capability: %w", err)
	}
	if err := installLSDiscover(vm, host, br); err != nil {
		return fmt.Errorf("install ls.discover capability: %w", err)
	}
	if err := installCCUsage(vm, host, br); err != nil {
		return fmt.Errorf("install ccusage.query capability: %w", err)
	}
	return nil
}

func installLog(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) {
	obj := vm.NewObject()
	_ = obj.Set("info", func(msg string) { br.Log("info", msg) })
	_ = obj.Set("warn", func(msg string) { br.Log("warn", msg) })
	_ = obj.Set("error", func(msg string) { br.Log("error", msg) })
	_ = host.Set("log", obj)
}

func installFS(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) {
	obj := vm.NewObject()
	_ = obj.Set("exists", br.FSExists)
	_ = obj.Set("readText", br.FSReadText)
	_ = obj.Set("writeText", br.FSWriteText)
	_ = host.Set("fs", obj)
}

func installEnv(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) {
	obj := vm.NewObject()
	_ = obj.Set("get", func(name string) goja.Value {
		v, ok := br.EnvGet(name)
		if !ok {
			return goja.Undefined()
		}
		return vm.ToValue(v)
	})
	_ = host.Set("env", obj)
}

func installKeychain(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) {
	obj := vm.NewObject()
	_ = obj.Set("readGenericPassword", br.KeychainRead)
	_ = obj.Set("writeGenericPassword", br.KeychainWrite)
	_ = host.Set("keychain", obj)
}

func installVault(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) {
	obj := vm.NewObject()
	_ = obj.Set("read", br.VaultRead)
	_ = obj.Set("write", br.VaultWrite)
	_ = obj.Set("delete", br.VaultDelete)
	_ = host.Set("vault", obj)
}

func installSQLite(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) {
	obj := vm.NewObject()
	_ = obj.Set("query", func(dbPath, query string) (goja.Value, error) {
		raw, err := br.SQLiteQuery(dbPath, query)
		if err != nil {
			return nil, err
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, fmt.Errorf("decode sqlite.query result: %w", err)
		}
		return vm.ToValue(parsed), nil
	})
	_ = obj.Set("exec", br.SQLiteExec)
	_ = host.Set("sqlite", obj)
}

const httpWrapperJS = `(function () {
  var rawFn = __openusage_ctx.host.http._requestRaw;
  __openusage_ctx.host.http.request = function (req) {
    var payload = JSON.stringify({
      url: req.url,
      method: req.method || "GET",
      headers: req.headers || null,
      bodyText: req.bodyText || null,
      timeoutMs: req.timeoutMs || 0,
      dangerouslyIgnoreTls: req.dangerouslyIgnoreTls || false
    });
    return JSON.parse(rawFn(payload));
  };
})();`

func installHTTP(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) error {
	obj := vm.NewObject()
	_ = obj.Set("_requestRaw", func(reqJSON string) (string, error) {
		var opts bridge.HTTPRequestOptions
		if err := json.Unmarshal([]byte(reqJSON), &opts); err != nil {
			return "", fmt.Errorf("invalid http.request options: %w", err)
		}
		resp, err := br.HTTPRequest(opts)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(resp)
		if err != nil {
			return "", fmt.Errorf("encode http.request response: %w", err)
		}
		return string(out), nil
	})
	if err := host.Set("http", obj); err != nil {
		return err
	}
	_, err := vm.RunString(httpWrapperJS)
	return err
}

const lsDiscoverWrapperJS = `(function () {
  var rawFn = __openusage_ctx.host.ls._discoverRaw;
  __openusage_ctx.host.ls.discover = function (opts) {
    return JSON.parse(rawFn(JSON.stringify(opts || {})));
  };
})();`

func installLSDiscover(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) error {
	obj := vm.NewObject()
	_ = obj.Set("_discoverRaw", func(optsJSON string) (string, error) {
		var opts bridge.LSDiscoverOptions
		if err := json.Unmarshal([]byte(optsJSON), &opts); err != nil {
			return "", fmt.Errorf("invalid ls.discover options: %w", err)
		}
		result, err := br.LSDiscover(opts)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("encode ls.discover result: %w", err)
		}
		return string(out), nil
	})
	if err := host.Set("ls", obj); err != nil {
		return err
	}
	_, err := vm.RunString(lsDiscoverWrapperJS)
	return err
}

const ccusageWrapperJS = `(function () {
  var rawFn = __openusage_ctx.host.ccusage._queryRaw;
  __openusage_ctx.host.ccusage.query = function (opts) {
    return JSON.parse(rawFn(JSON.stringify(opts || {})));
  };
})();`

func installCCUsage(vm *goja.Runtime, host *goja.Object, br *bridge.Bridge) error {
	obj := vm.NewObject()
	_ = obj.Set("_queryRaw", func(optsJSON string) (string, error) {
		var opts bridge.CCUsageOptions
		if err := json.Unmarshal([]byte(optsJSON), &opts); err != nil {
			return "", fmt.Errorf("invalid ccusage.query options: %w", err)
		}
		return br.CCUsageQuery(opts)
	})
	if err := host.Set("ccusage", obj); err != nil {
		return err
	}
	_, err := vm.RunString(ccusageWrapperJS)
	return err
}
